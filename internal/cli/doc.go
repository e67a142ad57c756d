// Package cli provides the interactive operator console of the kiosk.
//
// The console reads commands from stdin and drives the kiosk state machine:
// start or cancel a camera scan, enter a code by hand, record login/logout
// for the verified person and return to idle. State changes that happen in
// the background (a decoded QR code, a scan timeout) are printed as they
// arrive.
//
// The prompt is only printed when stdin is a terminal, so the console can
// also be fed from a pipe or a keyboard-wedge scanner.
package cli
