// Command taskqueue is the control CLI for the task queue daemon: starting
// and stopping taskqueued, loading backlogs, inspecting queues and results,
// and managing sources.
package main
