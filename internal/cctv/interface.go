package cctv

import (
	"context"

	"github.com/yourusername/u2s/internal/models"
)

// CameraSource는 카메라 목록을 제공하는 인터페이스입니다
type CameraSource interface {
	// Authenticate obtains fresh tokens for this cycle
	Authenticate(ctx context.Context) error

	// FetchCameras returns every camera visible to the account
	FetchCameras(ctx context.Context) ([]models.Camera, error)
}

// MonitorStore는 CCTV 플랫폼의 모니터를 관리하는 인터페이스입니다
type MonitorStore interface {
	// FetchMonitors returns the monitors of the configured group
	FetchMonitors(ctx context.Context) ([]models.Monitor, error)

	// CreateMonitor adds a monitor to the group
	CreateMonitor(ctx context.Context, monitor models.Monitor) error

	// UpdateMonitor overwrites an existing monitor
	UpdateMonitor(ctx context.Context, monitor models.Monitor) error
}
