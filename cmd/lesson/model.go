package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	playback "github.com/koscakluka/cognitive-os/core"
	"github.com/koscakluka/cognitive-os/core/ingest"
	"github.com/koscakluka/cognitive-os/core/library"
	"github.com/koscakluka/cognitive-os/core/paywall"
	"github.com/koscakluka/cognitive-os/core/quiz"
	"github.com/muesli/reflow/wordwrap"
)

const (
	seekStep     = 10.0
	refreshEvery = 250 * time.Millisecond
	defaultWidth = 80
)

type screen int

const (
	screenLibrary screen = iota
	screenIngest
	screenPlayer
	screenQuiz
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B5CF6"))
	selectedItem = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B5CF6")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	paywallStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#F59E0B")).Padding(1, 2)
	statusStyles = map[playback.Status]lipgloss.Style{
		playback.StatusPlaying: successStyle,
		playback.StatusError:   errorStyle,
	}
)

type (
	statusMsg    playback.Status
	refreshMsg   time.Time
	materialsMsg struct {
		materials []library.Material
		err       error
	}
	lessonDoneMsg struct{ err error }
	ingestDoneMsg struct {
		result ingest.Result
		err    error
		// message is what the user sees when err is set.
		message string
	}
	quizStartedMsg struct{ err error }
	favoriteMsg    struct{ err error }
)

type model struct {
	ctx context.Context
	app *app

	screen    screen
	materials []library.Material
	cursor    int
	current   *library.Material
	session   playback.Session

	spinner  spinner.Model
	progress progress.Model
	input    textinput.Model

	notice       string
	noticeErr    bool
	feedback     *quiz.Feedback
	quizzesTaken int
	width        int
}

func newModel(ctx context.Context, a *app) model {
	input := textinput.New()
	input.Placeholder = "path/to/document.pdf"
	input.CharLimit = 512

	return model{
		ctx:      ctx,
		app:      a,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient()),
		input:    input,
		width:    defaultWidth,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadMaterials(), m.waitForStatus(), refresh(), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(msg.Width-20, 10)
		return m, nil

	case statusMsg:
		m.session = m.app.controller.Snapshot()
		return m, m.waitForStatus()

	case refreshMsg:
		if m.screen == screenPlayer {
			m.session = m.app.controller.Snapshot()
		}
		return m, refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case materialsMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.materials = msg.materials
		m.cursor = min(m.cursor, max(len(m.materials)-1, 0))
		return m, nil

	case lessonDoneMsg:
		m.session = m.app.controller.Snapshot()
		if msg.err != nil && !errors.Is(msg.err, playback.ErrGenerationInFlight) {
			m.setError(errors.New(playback.UserMessage(msg.err)))
		}
		return m, m.loadMaterials()

	case ingestDoneMsg:
		if msg.err != nil {
			logger.Warn("failed to add document", "error", msg.err)
			m.setError(errors.New(msg.message))
			return m, nil
		}
		m.screen = screenLibrary
		m.cursor = 0
		m.setNotice(fmt.Sprintf("Added %q with %d modules.", msg.result.Material.Title, msg.result.Material.ModulesCount))
		return m, m.loadMaterials()

	case quizStartedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			m.screen = screenPlayer
		}
		return m, nil

	case favoriteMsg:
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, m.loadMaterials()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if open, _ := m.app.gate.IsOpen(); open {
			return m.updatePaywall(msg)
		}
		switch m.screen {
		case screenLibrary:
			return m.updateLibrary(msg)
		case screenIngest:
			return m.updateIngest(msg)
		case screenPlayer:
			return m.updatePlayer(msg)
		case screenQuiz:
			return m.updateQuiz(msg)
		}
	}
	return m, nil
}

func (m model) updateLibrary(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, max(len(m.materials)-1, 0))
	case "i":
		m.screen = screenIngest
		m.input.SetValue("")
		return m, m.input.Focus()
	case "f":
		if material, ok := m.selected(); ok {
			return m, m.toggleFavorite(material.ID)
		}
	case "enter":
		if material, ok := m.selected(); ok {
			m.current = &material
			m.screen = screenPlayer
			m.clearNotice()
			return m, m.startLesson(material)
		}
	}
	return m, nil
}

func (m model) updateIngest(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.Blur()
		m.screen = screenLibrary
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			return m, nil
		}
		m.setNotice("Reading " + filepath.Base(path) + "...")
		return m, m.ingestFile(path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updatePlayer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	controller := m.app.controller
	switch msg.String() {
	case "esc":
		if m.session.Status == playback.StatusPlaying {
			_ = controller.Pause()
		}
		m.screen = screenLibrary
		return m, m.loadMaterials()
	case " ":
		var err error
		if m.session.Status == playback.StatusPlaying {
			err = controller.Pause()
		} else {
			err = controller.Play()
		}
		if err != nil {
			m.setError(err)
		}
	case "left":
		controller.Seek(m.session.Position - seekStep)
	case "right":
		controller.Seek(m.session.Position + seekStep)
	case "s":
		rate := controller.ChangeSpeed()
		m.setNotice(fmt.Sprintf("Speed %.2gx", rate))
	case "r":
		if m.session.Status == playback.StatusError && m.current != nil {
			m.clearNotice()
			return m, m.startLesson(*m.current)
		}
	case "q":
		if m.session.Resource == nil {
			return m, nil
		}
		if m.quizzesTaken > 0 && !m.app.gate.CheckAccess(paywall.FeatureUnlimitedQuiz) {
			return m, nil
		}
		if m.session.Status == playback.StatusPlaying {
			_ = controller.Pause()
		}
		m.screen = screenQuiz
		m.feedback = nil
		m.quizzesTaken++
		return m, m.startQuiz(m.session.Resource.ScriptText)
	}
	m.session = controller.Snapshot()
	return m, nil
}

func (m model) updateQuiz(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	session := m.app.quiz
	key := msg.String()
	switch {
	case key == "esc":
		m.screen = screenPlayer
	case key == "enter" && m.feedback != nil:
		done, err := session.Next()
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.feedback = nil
		if done {
			result := session.Result()
			m.setNotice(fmt.Sprintf("Quiz done: %d/%d (%d%%).", result.Score, result.Total, result.Accuracy))
		}
	case len(key) == 1 && key[0] >= '1' && key[0] <= '9' && m.feedback == nil:
		feedback, err := session.Submit(int(key[0] - '1'))
		if err != nil {
			if !errors.Is(err, quiz.ErrInvalidOption) {
				m.setError(err)
			}
			return m, nil
		}
		m.feedback = &feedback
	}
	return m, nil
}

func (m model) updatePaywall(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		m.upgrade(paywall.PlanPremium)
	case "o":
		m.upgrade(paywall.PlanPro)
	case "esc":
		m.app.gate.Dismiss()
	}
	return m, nil
}

func (m *model) upgrade(plan paywall.Plan) {
	if err := m.app.gate.Upgrade(plan); err != nil {
		m.setError(err)
		return
	}
	m.setNotice("Upgraded to " + string(plan) + ".")
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cognitive OS") + mutedStyle.Render(" · "+string(m.app.gate.Plan())+" plan") + "\n\n")

	if open, feature := m.app.gate.IsOpen(); open {
		b.WriteString(paywallStyle.Render(fmt.Sprintf(
			"%s needs a higher plan.\n\n[p] premium  [o] pro  [esc] not now", feature,
		)))
		return b.String()
	}

	switch m.screen {
	case screenLibrary:
		b.WriteString(m.viewLibrary())
	case screenIngest:
		b.WriteString("Document to add:\n\n" + m.input.View() + "\n\n" + mutedStyle.Render("[enter] add  [esc] back"))
	case screenPlayer:
		b.WriteString(m.viewPlayer())
	case screenQuiz:
		b.WriteString(m.viewQuiz())
	}

	if m.notice != "" {
		style := mutedStyle
		if m.noticeErr {
			style = errorStyle
		}
		b.WriteString("\n\n" + style.Render(wordwrap.String(m.notice, m.width)))
	}
	return b.String()
}

func (m model) viewLibrary() string {
	var b strings.Builder
	if len(m.materials) == 0 {
		b.WriteString(mutedStyle.Render("Your library is empty. Press [i] to add a document.") + "\n")
	}
	for i, material := range m.materials {
		star := " "
		if material.IsFavorite {
			star = "★"
		}
		line := fmt.Sprintf("%s %-40s %3d%%  %s", star, material.Title, material.Progress, material.Status)
		if i == m.cursor {
			line = selectedItem.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render("[enter] listen  [i] add document  [f] favorite  [q] quit"))
	return b.String()
}

func (m model) viewPlayer() string {
	var b strings.Builder
	if m.current != nil {
		b.WriteString(titleStyle.Render(m.current.Title) + "\n\n")
	}

	status := m.session.Status
	style, ok := statusStyles[status]
	if !ok {
		style = mutedStyle
	}
	if status.IsGenerating() {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(style.Render(string(status)) + "\n\n")

	if resource := m.session.Resource; resource != nil {
		percent := 0.0
		if resource.Duration > 0 {
			percent = m.session.Position / resource.Duration
		}
		b.WriteString(m.progress.ViewAs(percent) + "\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%s / %s  ·  %.2gx",
			formatSeconds(m.session.Position), formatSeconds(resource.Duration), m.session.Rate)) + "\n\n")
		b.WriteString(wordwrap.String(resource.ScriptText, min(m.width, 100)) + "\n")
	}
	if m.session.LastError != "" {
		b.WriteString(errorStyle.Render(m.session.LastError) + "\n" + mutedStyle.Render("[r] try again") + "\n")
	}

	b.WriteString("\n" + mutedStyle.Render("[space] play/pause  [←/→] seek  [s] speed  [q] quiz  [esc] library"))
	return b.String()
}

func (m model) viewQuiz() string {
	session := m.app.quiz
	switch session.Status() {
	case quiz.StatusLoading, quiz.StatusIdle:
		return m.spinner.View() + " Preparing questions..."
	case quiz.StatusError:
		return errorStyle.Render("Couldn't prepare the quiz.") + "\n\n" + mutedStyle.Render("[esc] back")
	case quiz.StatusCompleted:
		result := session.Result()
		return successStyle.Render(fmt.Sprintf("Score %d/%d · accuracy %d%%", result.Score, result.Total, result.Accuracy)) +
			"\n\n" + mutedStyle.Render("[esc] back to the lesson")
	}

	question, index, ok := session.Current()
	if !ok {
		return ""
	}

	var b strings.Builder
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Question %d of %d", index+1, session.Total())) + "\n\n")
	b.WriteString(wordwrap.String(question.Prompt, min(m.width, 100)) + "\n\n")
	for i, option := range question.Options {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, option))
	}

	if m.feedback != nil {
		style := errorStyle
		if m.feedback.Correct {
			style = successStyle
		}
		b.WriteString("\n" + style.Render(wordwrap.String(m.feedback.Message, min(m.width, 100))) + "\n")
		b.WriteString(mutedStyle.Render("[enter] next"))
	}
	return b.String()
}

func (m model) selected() (library.Material, bool) {
	if m.cursor < 0 || m.cursor >= len(m.materials) {
		return library.Material{}, false
	}
	return m.materials[m.cursor], true
}

func (m *model) setNotice(text string) {
	m.notice = text
	m.noticeErr = false
}

func (m *model) setError(err error) {
	m.notice = err.Error()
	m.noticeErr = true
}

func (m *model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}

func (m model) waitForStatus() tea.Cmd {
	statuses := m.app.statuses
	return func() tea.Msg {
		return statusMsg(<-statuses)
	}
}

func refresh() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m model) loadMaterials() tea.Cmd {
	ctx, lib := m.ctx, m.app.library
	return func() tea.Msg {
		materials, err := lib.List(ctx)
		return materialsMsg{materials: materials, err: err}
	}
}

func (m model) toggleFavorite(id string) tea.Cmd {
	ctx, lib := m.ctx, m.app.library
	return func() tea.Msg {
		_, err := lib.ToggleFavorite(ctx, id)
		return favoriteMsg{err: err}
	}
}

func (m model) startLesson(material library.Material) tea.Cmd {
	ctx, controller := m.ctx, m.app.controller
	item := playback.Item{ID: material.ID, Title: material.Title, RawText: material.RawText}
	return func() tea.Msg {
		return lessonDoneMsg{err: controller.GenerateAndPlay(ctx, item)}
	}
}

func (m model) startQuiz(script string) tea.Cmd {
	ctx, session := m.ctx, m.app.quiz
	return func() tea.Msg {
		return quizStartedMsg{err: session.Start(ctx, script)}
	}
}

func (m model) ingestFile(path string) tea.Cmd {
	ctx, ingestor := m.ctx, m.app.ingestor
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return ingestDoneMsg{err: err, message: fmt.Sprintf("Couldn't open %s.", path)}
		}
		result, err := ingestor.Ingest(ctx, ingest.Upload{Name: filepath.Base(path), Data: data})
		return ingestDoneMsg{result: result, err: err, message: ingest.UserMessage(err)}
	}
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
