package types

// StatusResponse is the payload of GET /status on the control server.
type StatusResponse struct {
	// Run mode of the shell.
	// example: packaged
	Mode string `json:"mode"`
	// Readiness state of the last launch (idle, starting, ready, ready_by_timeout, failed, stopped).
	// example: ready
	State string `json:"state"`
	// True while the backend process is alive.
	Running bool `json:"running"`
	// URL the window was pointed at.
	// example: http://localhost:5000
	URL string `json:"url,omitempty"`
	// Host and port handed to the backend.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
	// Process ID of the backend, when running.
	PID int `json:"pid,omitempty"`
	// Interpreter the backend runs under.
	Runtime RuntimeInfo `json:"runtime"`
	// Whether the window shows the offline page.
	Offline bool `json:"offline"`
	// Last launch error, if any.
	Error string `json:"error,omitempty"`
}

// RuntimeInfo describes the located interpreter.
type RuntimeInfo struct {
	// example: python3
	Name string `json:"name,omitempty"`
	// example: /usr/bin/python3
	Path string `json:"path,omitempty"`
	// example: 3.11.4
	Version string `json:"version,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: not found
	Error string `json:"error"`
	// HTTP status code.
	// example: 404
	Code int `json:"code"`
}
