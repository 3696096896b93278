// Command mvsync reconciles separately downloaded video and audio fragments
// under a music-video root into playable containers.
//
//	mvsync reconcile [--dry-run] [--no-lock] [--diagnostic]
//	mvsync watch [--interval 30m]
//	mvsync status
//	mvsync history [--limit N]
//	mvsync config init|validate|show
package main
