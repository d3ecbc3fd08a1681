// Package nic abstracts the device that frames arrive on and leave by.
//
// A Port moves frames in bursts. Receive never blocks: it returns what
// is ready. Send is best effort: frames the driver cannot take right
// now are dropped and the call reports how many were accepted.
package nic
