package hls

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/grafov/m3u8"
	"go.uber.org/zap"
)

// ProbeResult는 스트림 플레이리스트 검사 결과
type ProbeResult struct {
	URL      string        // 검사한 플레이리스트 URL
	Kind     string        // "master" 또는 "media"
	Variants int           // master 플레이리스트의 variant 수
	Segments int           // media 플레이리스트의 세그먼트 수
	Latency  time.Duration // 응답 시간
}

// Prober는 카메라 HLS 플레이리스트가 응답하고 파싱되는지 확인합니다
type Prober struct {
	http    *resty.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewProber는 공유 HTTP 클라이언트 위에 Prober를 생성합니다
func NewProber(httpClient *resty.Client, timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		http:    httpClient,
		timeout: timeout,
		logger:  logger,
	}
}

// Probe는 플레이리스트를 받아 m3u8로 디코딩합니다
func (p *Prober) Probe(ctx context.Context, playlistURL string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/vnd.apple.mpegurl, */*").
		Get(playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", stripURL(err))
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("playlist request failed with status %d", resp.StatusCode())
	}

	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(resp.Body()), true)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}

	result := &ProbeResult{
		URL:     playlistURL,
		Latency: time.Since(start),
	}

	switch listType {
	case m3u8.MASTER:
		if master, ok := playlist.(*m3u8.MasterPlaylist); ok {
			result.Kind = "master"
			result.Variants = len(master.Variants)
		}
	case m3u8.MEDIA:
		if media, ok := playlist.(*m3u8.MediaPlaylist); ok {
			result.Kind = "media"
			result.Segments = int(media.Count())
		}
	}
	if result.Kind == "" {
		return nil, fmt.Errorf("unknown playlist type")
	}

	p.logger.Debug("Stream playlist probed",
		zap.String("kind", result.Kind),
		zap.Int("variants", result.Variants),
		zap.Int("segments", result.Segments),
		zap.Duration("latency", result.Latency),
	)

	return result, nil
}

// stripURL drops the stream URL, which carries the camera token, from a transport error
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
