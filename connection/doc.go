// Package connection drives a single payroll connection attempt through the
// link ceremony:
//
//	idle -> initializing -> ready | simulated_ready -> linking -> exchanging -> connected
//
// Any step can fail into error, and error recovers through Retry. Each Start
// opens a new cycle. Results and surface callbacks that belong to an older
// cycle are discarded, so overlapping starts resolve as last-cycle-wins.
package connection
