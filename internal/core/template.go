package core

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourusername/u2s/internal/models"
	"go.uber.org/zap"
)

// DefaultTemplatePath is where the monitor template is looked up by default
const DefaultTemplatePath = "./u2s-template.json"

// LoadTemplate는 모니터 템플릿 파일을 로드합니다.
// 템플릿은 프로세스 시작 시 한 번만 읽고 이후에는 읽기 전용으로 사용합니다.
func LoadTemplate(path string, logger *zap.Logger) (*models.Monitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cant load monitor template file (%s): %w", ErrConfig, path, err)
	}

	var template models.Monitor
	if err := json.Unmarshal(data, &template); err != nil {
		return nil, fmt.Errorf("%w: failed to parse monitor template: %w", ErrConfig, err)
	}

	logger.Info("Monitor template loaded",
		zap.String("path", path),
		zap.String("template_mid", template.MID),
	)

	return &template, nil
}
