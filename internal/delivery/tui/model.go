package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fitfeed-app/fitfeed-go/internal/constant"
	"github.com/fitfeed-app/fitfeed-go/internal/model"
	"github.com/fitfeed-app/fitfeed-go/internal/pagination"
	"github.com/fitfeed-app/fitfeed-go/internal/usecase"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

// Messages
type (
	rootsLoadedMsg struct{ err error }
	moreLoadedMsg  struct{ err error }
	repliesMsg     struct {
		id  int64
		err error
	}
	actionDoneMsg  struct{ err error }
	statusClearMsg struct{}
	triggerTickMsg struct{}
)

type composeMode int

const (
	modeBrowse composeMode = iota
	modeComposeRoot
	modeComposeReply
	modeEdit
)

type rowKind int

const (
	rowRoot rowKind = iota
	rowReply
	rowMoreReplies
	rowMoreRoots
)

// row is one rendered line target: a root comment, a reply under its parent,
// or a load-more sentinel.
type row struct {
	kind    rowKind
	comment model.Comment
	parent  int64
}

// Model is the Bubble Tea model for the comment browser.
type Model struct {
	Usecase *usecase.CommentUsecase
	Log     *zap.Logger
	Config  *koanf.Koanf

	mode    composeMode
	rows    []row
	cursor  int
	width   int
	height  int
	spinner spinner.Model
	input   textinput.Model
	target  int64
	status  string
	isError bool
}

func NewModel(commentUsecase *usecase.CommentUsecase, zap *zap.Logger, koanf *koanf.Koanf) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	input := textinput.New()
	input.CharLimit = constant.MAX_COMMENT_LENGTH
	input.Placeholder = "Write a comment..."

	return Model{
		Usecase: commentUsecase,
		Log:     zap,
		Config:  koanf,
		spinner: s,
		input:   input,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRootsCmd())
}

// ---- commands ----

func (m Model) loadRootsCmd() tea.Cmd {
	return func() tea.Msg {
		return rootsLoadedMsg{err: m.Usecase.LoadRoots(context.Background())}
	}
}

func (m Model) loadMoreRootsCmd() tea.Cmd {
	return func() tea.Msg {
		return moreLoadedMsg{err: m.Usecase.LoadMoreRoots(context.Background())}
	}
}

func (m Model) expandCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		return repliesMsg{id: id, err: m.Usecase.ExpandReplies(context.Background(), id)}
	}
}

func (m Model) moreRepliesCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		return repliesMsg{id: id, err: m.Usecase.LoadMoreReplies(context.Background(), id)}
	}
}

func (m Model) actionCmd(action func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: action(context.Background())}
	}
}

func statusClearCmd() tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg { return statusClearMsg{} })
}

// ---- update ----

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case rootsLoadedMsg:
		// Background pagination failures stay off the status line; the
		// user recovers by scrolling again.
		if msg.err != nil {
			m.Log.Warn("loading comments failed", zap.Error(msg.err))
		}
		m.rebuildRows()
		return m, nil

	case moreLoadedMsg:
		if msg.err != nil {
			m.Log.Warn("loading more comments failed", zap.Error(msg.err))
		}
		m.rebuildRows()
		return m, nil

	case repliesMsg:
		if msg.err != nil {
			m.Log.Warn("loading replies failed", zap.Int64("comment_id", msg.id), zap.Error(msg.err))
		}
		m.rebuildRows()
		return m, nil

	case actionDoneMsg:
		m.rebuildRows()
		if msg.err != nil {
			m.status = msg.err.Error()
			m.isError = true
			return m, statusClearCmd()
		}
		return m, nil

	case statusClearMsg:
		m.status = ""
		m.isError = false
		return m, nil

	case triggerTickMsg:
		if m.Usecase.RootsLoading() {
			return m, tea.Tick(pagination.TriggerDebounce, func(time.Time) tea.Msg { return triggerTickMsg{} })
		}
		m.rebuildRows()
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeBrowse {
			return m.updateBrowse(msg)
		}
		return m.updateCompose(msg)
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.Usecase.Close()
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		// Reaching the sentinel row at the bottom is the scroll-edge
		// signal for the root list.
		if m.cursor == len(m.rows)-1 && m.selectedKind() == rowMoreRoots {
			m.Usecase.TriggerMoreRoots(context.Background(), nil)
			return m, tea.Tick(2*pagination.TriggerDebounce, func(time.Time) tea.Msg { return triggerTickMsg{} })
		}
		return m, nil

	case "enter", "o":
		selected, ok := m.selectedRow()
		if !ok {
			return m, nil
		}
		switch selected.kind {
		case rowRoot:
			view := m.Usecase.ReplyViewOf(selected.comment.Id)
			if view.Phase == usecase.ReplyExpanded || view.Phase == usecase.ReplyLoadingMore {
				m.Usecase.CollapseReplies(selected.comment.Id)
				m.rebuildRows()
				return m, nil
			}
			return m, m.expandCmd(selected.comment.Id)
		case rowMoreReplies:
			return m, m.moreRepliesCmd(selected.parent)
		case rowMoreRoots:
			return m, m.loadMoreRootsCmd()
		}
		return m, nil

	case "l":
		selected, ok := m.selectedRow()
		if !ok || selected.comment.Id == 0 || m.Usecase.IsBusy(selected.comment.Id) {
			return m, nil
		}
		id := selected.comment.Id
		return m, m.actionCmd(func(ctx context.Context) error {
			return m.Usecase.ToggleLike(ctx, id)
		})

	case "n":
		if !m.Usecase.Authenticated() {
			return m.notSignedIn()
		}
		m.mode = modeComposeRoot
		m.input.SetValue("")
		return m, m.input.Focus()

	case "r":
		selected, ok := m.selectedRow()
		if !ok || selected.kind != rowRoot || selected.comment.IsPending() {
			return m, nil
		}
		if !m.Usecase.Authenticated() {
			return m.notSignedIn()
		}
		m.mode = modeComposeReply
		m.target = selected.comment.Id
		m.input.SetValue("")
		return m, m.input.Focus()

	case "e":
		selected, ok := m.selectedRow()
		if !ok || selected.comment.Id == 0 || selected.comment.IsPending() {
			return m, nil
		}
		err := m.Usecase.StartEdit(selected.comment.Id)
		if err != nil {
			m.status = err.Error()
			m.isError = true
			return m, statusClearCmd()
		}
		m.mode = modeEdit
		m.target = selected.comment.Id
		m.input.SetValue(selected.comment.Content)
		return m, m.input.Focus()

	case "d":
		selected, ok := m.selectedRow()
		if !ok || selected.comment.Id == 0 || selected.comment.IsPending() || m.Usecase.IsBusy(selected.comment.Id) {
			return m, nil
		}
		id := selected.comment.Id
		return m, m.actionCmd(func(ctx context.Context) error {
			return m.Usecase.Remove(ctx, id)
		})

	case "g":
		return m, m.loadRootsCmd()
	}

	return m, nil
}

func (m Model) updateCompose(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.mode == modeEdit {
			m.Usecase.CancelEdit(m.target)
		}
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil

	case "enter":
		content := m.input.Value()
		mode := m.mode
		target := m.target
		m.mode = modeBrowse
		m.input.Blur()

		switch mode {
		case modeComposeRoot:
			return m, m.actionCmd(func(ctx context.Context) error {
				return m.Usecase.SubmitRoot(ctx, content)
			})
		case modeComposeReply:
			return m, m.actionCmd(func(ctx context.Context) error {
				return m.Usecase.SubmitReply(ctx, target, content)
			})
		case modeEdit:
			return m, m.actionCmd(func(ctx context.Context) error {
				return m.Usecase.CommitEdit(ctx, target, content)
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) notSignedIn() (tea.Model, tea.Cmd) {
	m.status = "Sign in to interact with comments"
	m.isError = true
	return m, statusClearCmd()
}

// ---- rows ----

func (m *Model) rebuildRows() {
	rows := []row{}
	for _, comment := range m.Usecase.Roots() {
		rows = append(rows, row{kind: rowRoot, comment: comment})

		view := m.Usecase.ReplyViewOf(comment.Id)
		if view.Phase != usecase.ReplyExpanded && view.Phase != usecase.ReplyLoadingMore {
			continue
		}
		for _, reply := range view.Items {
			rows = append(rows, row{kind: rowReply, comment: reply, parent: comment.Id})
		}
		if view.HasMore {
			rows = append(rows, row{kind: rowMoreReplies, parent: comment.Id})
		}
	}
	if m.Usecase.RootsHasMore() {
		rows = append(rows, row{kind: rowMoreRoots})
	}

	m.rows = rows
	if m.cursor > len(rows)-1 {
		m.cursor = len(rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) selectedRow() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m Model) selectedKind() rowKind {
	selected, ok := m.selectedRow()
	if !ok {
		return rowMoreRoots
	}
	return selected.kind
}

// ---- view ----

func (m Model) View() string {
	out := headerStyle.Render(fmt.Sprintf("FitFeed — comments on workout %d", m.Usecase.ResourceId)) + "\n"

	if len(m.rows) == 0 {
		if m.Usecase.RootsLoading() || !m.Usecase.RootsFetched() {
			out += " " + m.spinner.View() + " loading comments...\n"
		} else {
			out += metaStyle.Render(" No comments yet.") + "\n"
		}
	}

	visible := m.height - 6
	if visible < 3 {
		visible = 3
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}

	for i := start; i < len(m.rows) && i < start+visible; i++ {
		out += m.renderRow(m.rows[i], i == m.cursor) + "\n"
	}

	switch m.mode {
	case modeComposeRoot:
		out += "\n New comment: " + m.input.View() + "\n"
	case modeComposeReply:
		out += fmt.Sprintf("\n Reply to #%d: %s\n", m.target, m.input.View())
	case modeEdit:
		out += fmt.Sprintf("\n Edit #%d: %s\n", m.target, m.input.View())
	default:
		out += "\n" + helpStyle.Render("j/k move · enter expand · l like · n comment · r reply · e edit · d delete · q quit") + "\n"
	}

	if m.status != "" {
		if m.isError {
			out += errorStyle.Render(" "+m.status) + "\n"
		} else {
			out += statusStyle.Render(" "+m.status) + "\n"
		}
	}

	return out
}

func (m Model) renderRow(r row, selected bool) string {
	var line string

	switch r.kind {
	case rowRoot, rowReply:
		comment := r.comment
		indent := ""
		if r.kind == rowReply {
			indent = replyIndent
		}

		like := fmt.Sprintf("♥ %d", comment.LikeCount)
		if comment.IsLiked {
			like = likedStyle.Render(like)
		}

		meta := metaStyle.Render(comment.CreatedAt.Format("Jan 2 15:04"))
		if comment.IsPending() {
			meta = pendingStyle.Render("posting...")
		} else if m.Usecase.IsBusy(comment.Id) {
			meta = pendingStyle.Render("saving...")
		}

		line = fmt.Sprintf("%s%s  %s  %s %s", indent, authorStyle.Render(comment.Author.DisplayName), comment.Content, like, meta)
		if r.kind == rowRoot && comment.ChildCount > 0 {
			line += metaStyle.Render(fmt.Sprintf("  [%d replies]", comment.ChildCount))
		}

	case rowMoreReplies:
		view := m.Usecase.ReplyViewOf(r.parent)
		if view.Phase == usecase.ReplyLoadingMore {
			line = replyIndent + m.spinner.View() + " loading replies..."
		} else {
			line = replyIndent + metaStyle.Render("· more replies ·")
		}

	case rowMoreRoots:
		if m.Usecase.RootsLoading() {
			line = " " + m.spinner.View() + " loading more..."
		} else {
			line = metaStyle.Render(" · scroll for more ·")
		}
	}

	if selected {
		return selectedStyle.Render(line)
	}
	return line
}
