// Command autopilotd supervises an autonomous coding worker process:
// spawning it, tracking its budget and trajectory, brokering compute
// jobs on the NIP-90 marketplace, and exposing status over `status`
// and `metrics`.
package main

func main() {
	Execute()
}
