package api

import (
	"splicer/ffprobe"
	"splicer/orchestrator"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Running int    `json:"running_jobs"`
}

type ToolsResponse struct {
	Tools []orchestrator.ToolInfo `json:"tools"`
}

type ProbeRequest struct {
	Path string `json:"path"`
}

type ProbeResponse struct {
	*ffprobe.Metadata
	Supported bool `json:"supported"`
}

type PathResponse struct {
	Path string `json:"path"`
}

type ExportAcceptedResponse struct {
	ID    string             `json:"id"`
	State orchestrator.State `json:"state"`
}

type ExportsResponse struct {
	Exports []orchestrator.Snapshot `json:"exports"`
}
