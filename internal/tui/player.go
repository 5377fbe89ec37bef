// Package tui renders media in the terminal: the audio player with its
// waveform, play/pause, click-to-seek and save.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/saker-ai/chiku/internal/media"
	"github.com/saker-ai/chiku/internal/playback"
)

const (
	syncInterval = 50 * time.Millisecond
	// cellsPerBar is one glyph plus one gap.
	cellsPerBar = 2
	// The player owns the alternate screen, so mouse rows count from the
	// first line of View: the title, then the track.
	trackRow    = 1
	trackOffset = 4
)

var levels = []rune("▁▂▃▄▅▆▇█")

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ec4899"))
	playedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a855f7"))
	playedAlt     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ec4899"))
	unplayedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4b3b5c"))
	buttonStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8b5cf6"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7a7a8c"))
)

type metadataMsg time.Duration

type syncMsg time.Time

// Player is the bubbletea model of one audio message.
type Player struct {
	title    string
	duration time.Duration
	ctrl     *playback.Controller
	latest   atomic.Pointer[playback.Frame]
	status   string
	logger   *zap.Logger
}

// NewPlayer builds a player for an audio payload. Saves go to saver.
func NewPlayer(payload media.Payload, title string, saver *playback.Saver, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Player{
		title:    title,
		duration: playback.ProbeDuration(payload),
		logger:   logger,
	}
	p.ctrl = playback.NewController(playback.Options{
		Asset:   playback.NewClockAsset(p.duration, nil),
		Payload: payload,
		Draw:    p.store,
		Saver:   saver,
		Logger:  logger,
	})
	return p
}

// Controller exposes the playback controller.
func (p *Player) Controller() *playback.Controller {
	return p.ctrl
}

func (p *Player) store(f playback.Frame) {
	p.latest.Store(&f)
}

// Init delivers the duration asynchronously and starts position syncing.
func (p *Player) Init() tea.Cmd {
	d := p.duration
	return tea.Batch(
		func() tea.Msg { return metadataMsg(d) },
		syncTick(),
	)
}

func syncTick() tea.Cmd {
	return tea.Tick(syncInterval, func(t time.Time) tea.Msg {
		return syncMsg(t)
	})
}

// Update handles keys, clicks on the track and clock ticks.
func (p *Player) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case metadataMsg:
		if time.Duration(msg) <= 0 {
			p.status = "duration unknown"
			return p, nil
		}
		_, _ = p.ctrl.Load(time.Duration(msg))
		return p, nil

	case syncMsg:
		_, _ = p.ctrl.Sync()
		return p, syncTick()

	case tea.KeyMsg:
		switch msg.String() {
		case " ", "p", "enter":
			if _, err := p.ctrl.Send(playback.Toggle()); err != nil {
				p.status = err.Error()
			}
		case "s":
			p.save()
		case "left":
			p.nudge(-5 * time.Second)
		case "right":
			p.nudge(5 * time.Second)
		case "q", "esc", "ctrl+c":
			p.ctrl.Close()
			return p, tea.Quit
		}
		return p, nil

	case tea.MouseMsg:
		if msg.Type != tea.MouseLeft || msg.Y != trackRow {
			return p, nil
		}
		x := msg.X - trackOffset
		width := playback.BarCount * cellsPerBar
		if x < 0 || x >= width {
			return p, nil
		}
		_, _ = p.ctrl.Send(playback.Seek(float64(x), float64(width)))
		return p, nil
	}
	return p, nil
}

func (p *Player) nudge(delta time.Duration) {
	snap := p.ctrl.Snapshot()
	if snap.Duration <= 0 {
		return
	}
	target := snap.Position + delta
	_, _ = p.ctrl.Send(playback.Seek(float64(target), float64(snap.Duration)))
}

func (p *Player) save() {
	if p.ctrl.Downloading() {
		return
	}
	if path, ok := p.ctrl.Download(); ok {
		p.status = "saved " + path
		return
	}
	p.status = "save failed"
}

// View renders the title, the track and the key help.
func (p *Player) View() string {
	frame := p.latest.Load()
	if frame == nil {
		f := p.ctrl.Frame()
		frame = &f
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("♪ " + p.title))
	b.WriteString("\n")
	b.WriteString(playButton(frame.Snapshot.Playing))
	b.WriteString(renderBars(frame.Bars))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s / %s",
		playback.FormatDuration(frame.Snapshot.Position.Seconds()),
		playback.FormatDuration(frame.Snapshot.Duration.Seconds()),
	)))
	b.WriteString("\n")
	help := "space play/pause · click track to seek · ←/→ skip · s save · q close"
	if p.status != "" {
		help = p.status + " · " + help
	}
	b.WriteString(mutedStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

// playButton is the track prefix; its width is trackOffset.
func playButton(playing bool) string {
	button := "▶"
	if playing {
		button = "❚❚"
	}
	return buttonStyle.Render(fmt.Sprintf("%-3s", button)) + " "
}

func renderBars(bars []playback.Bar) string {
	var b strings.Builder
	for i, bar := range bars {
		glyph := string(levelFor(bar.Height))
		switch {
		case bar.Played && i%2 == 0:
			b.WriteString(playedStyle.Render(glyph))
		case bar.Played:
			b.WriteString(playedAlt.Render(glyph))
		default:
			b.WriteString(unplayedStyle.Render(glyph))
		}
		b.WriteString(" ")
	}
	return b.String()
}

func levelFor(height float64) rune {
	i := int(height * float64(len(levels)))
	if i < 0 {
		i = 0
	}
	if i >= len(levels) {
		i = len(levels) - 1
	}
	return levels[i]
}

// Play runs the player until the user closes it or ctx ends.
func Play(ctx context.Context, payload media.Payload, title string, saver *playback.Saver, logger *zap.Logger) error {
	player := NewPlayer(payload, title, saver, logger)
	defer player.ctrl.Close()
	program := tea.NewProgram(player,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := program.Run()
	return err
}
