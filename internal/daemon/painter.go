package daemon

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"

	"golang.org/x/image/draw"

	"github.com/1broseidon/backdrop/internal/backdrop"
	"github.com/1broseidon/backdrop/internal/monitor"
	"github.com/1broseidon/backdrop/internal/platform"
	"github.com/1broseidon/backdrop/internal/render"
)

// Painter composes the backdrop of every monitor into one root-sized image
// and hands it to the platform. Repaints are coalesced; a newer paint
// supersedes the one still waiting for renders.
type Painter struct {
	manager   *backdrop.Manager
	target    platform.Painter
	workspace func() int
	logger    *slog.Logger

	kick chan struct{}

	mu      sync.Mutex
	current *paintJob
	paints  int

	flushMu sync.Mutex
}

type paintJob struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	img       *image.NRGBA
	remaining int
}

// NewPainter creates a painter. A nil target still fetches every surface,
// which keeps the cache warm without touching the screen.
func NewPainter(manager *backdrop.Manager, target platform.Painter, workspace func() int, logger *slog.Logger) *Painter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Painter{
		manager:   manager,
		target:    target,
		workspace: workspace,
		logger:    logger,
		kick:      make(chan struct{}, 1),
	}
}

// Request schedules a repaint.
func (p *Painter) Request() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run performs requested repaints until ctx is done.
func (p *Painter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.current != nil {
				p.current.cancel()
				p.current = nil
			}
			p.mu.Unlock()
			return
		case <-p.kick:
			p.paint(ctx)
		}
	}
}

// Paints returns the number of composed images handed to the platform.
func (p *Painter) Paints() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paints
}

func (p *Painter) paint(parent context.Context) {
	monitors := p.manager.Registry().All()
	if len(monitors) == 0 {
		return
	}

	width, height := p.screenSize(monitors)
	ctx, cancel := context.WithCancel(parent)
	job := &paintJob{
		ctx:       ctx,
		cancel:    cancel,
		img:       image.NewNRGBA(image.Rect(0, 0, width, height)),
		remaining: len(monitors),
	}

	p.mu.Lock()
	prev := p.current
	p.current = job
	p.mu.Unlock()

	ws := p.workspace()
	for _, mon := range monitors {
		p.manager.GetImageSurface(ctx, mon.ID, ws, func(s *backdrop.Surface, err error) {
			p.deliver(job, mon, s, err)
		})
	}

	// The new job has joined any render the previous one was waiting on, so
	// cancelling the old waiters leaves shared renders running.
	if prev != nil {
		prev.cancel()
	}
}

func (p *Painter) deliver(job *paintJob, mon *monitor.Monitor, s *backdrop.Surface, err error) {
	var decodeErr *render.DecodeError
	switch {
	case err == nil:
	case errors.Is(err, render.ErrCancelled):
	case errors.As(err, &decodeErr):
		p.logger.Warn("backdrop image unavailable, painting canvas", "monitor", mon.ID, "error", err)
	default:
		p.logger.Warn("backdrop unavailable", "monitor", mon.ID, "error", err)
	}

	job.mu.Lock()
	if s != nil && s.Image != nil {
		src := s.Paint.Image()
		dst := mon.Geometry.Image()
		draw.Draw(job.img, dst, s.Image, src.Min, draw.Src)
	}
	job.remaining--
	done := job.remaining == 0
	job.mu.Unlock()

	if done {
		p.flush(job)
	}
}

func (p *Painter) flush(job *paintJob) {
	defer job.cancel()
	if job.ctx.Err() != nil {
		return
	}
	p.mu.Lock()
	if p.current != job {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.paints++
	p.mu.Unlock()

	if p.target == nil {
		return
	}
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	if err := p.target.SetBackground(job.img); err != nil {
		p.logger.Warn("failed to set root background", "error", err)
		return
	}
	p.logger.Debug("root background painted", "size", job.img.Bounds().Size())
}

func (p *Painter) screenSize(monitors []*monitor.Monitor) (int, int) {
	if p.target != nil {
		if w, h := p.target.ScreenSize(); w > 0 && h > 0 {
			return w, h
		}
	}
	var union platform.Rect
	for _, mon := range monitors {
		union = union.Union(mon.Geometry)
	}
	return union.X + union.Width, union.Y + union.Height
}
