package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/nfm-bind/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	menuStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	opStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectMenu modelState = iota
	stateInputItems
	stateWaiting
	stateShowResult
)

type interactiveModel struct {
	err      error
	ctx      context.Context
	host     *host
	cancel   context.CancelFunc
	status   string
	result   result
	input    textinput.Model
	selected int
	state    modelState
}

type resultMsg struct {
	err error
	res result
}

type rebindMsg struct {
	err error
}

type lastMsg struct {
	err error
}

func newInteractiveModel(ctx context.Context, h *host) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "items: "
	ti.Placeholder = "alpha, beta, gamma"
	ti.Width = 40
	ti.SetValue(strings.Join(h.cfg.Items, ", "))

	m := &interactiveModel{
		ctx:   ctx,
		host:  h,
		input: ti,
		state: stateSelectMenu,
	}
	for i, menu := range config.Menus {
		if menu == h.cfg.Menu {
			m.selected = i
		}
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.waitRebind
}

func (m *interactiveModel) waitRebind() tea.Msg {
	select {
	case err := <-m.host.rebinds:
		return rebindMsg{err: err}
	case <-m.ctx.Done():
		return nil
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.hide()
			return m, tea.Quit

		case "q":
			if m.state != stateInputItems {
				m.hide()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectMenu && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectMenu && m.selected < len(config.Menus)-1 {
				m.selected++
			}

		case "r":
			if m.state == stateSelectMenu {
				return m, m.runLast
			}

		case "enter":
			switch m.state {
			case stateSelectMenu:
				if config.Menus[m.selected] == config.MenuItems {
					m.state = stateInputItems
					m.input.Focus()
					return m, textinput.Blink
				}
				return m, m.startShow()

			case stateInputItems:
				m.input.Blur()
				return m, m.startShow()

			case stateShowResult:
				m.reset()
			}
			return m, nil

		case "esc":
			switch m.state {
			case stateInputItems:
				m.input.Blur()
				m.state = stateSelectMenu
			case stateWaiting:
				m.hide()
			case stateShowResult:
				m.reset()
			}
			return m, nil
		}

	case resultMsg:
		m.cancel = nil
		m.result = msg.res
		m.err = msg.err
		m.state = stateShowResult
		return m, nil

	case rebindMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("rebind failed: %v", msg.err))
		} else {
			m.status = resultStyle.Render("plugin rebound")
		}
		return m, m.waitRebind

	case lastMsg:
		if msg.err != nil {
			m.status = errorStyle.Render(fmt.Sprintf("RunLastDefinition: %v", msg.err))
		} else {
			m.status = resultStyle.Render("last definition run")
		}
		return m, nil
	}

	if m.state == stateInputItems {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectMenu
	m.result = result{}
	m.err = nil
}

// startShow presents the highlighted menu and waits for it in the background.
func (m *interactiveModel) startShow() tea.Cmd {
	b := m.host.mgr.Current()
	menu := config.Menus[m.selected]
	items := splitList(m.input.Value())
	if menu == config.MenuItems && len(items) == 0 {
		m.err = fmt.Errorf("items menu needs at least one item")
		m.state = stateShowResult
		return nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.state = stateWaiting
	return func() tea.Msg {
		defer cancel()
		if b == nil {
			return resultMsg{err: fmt.Errorf("no plugin bound")}
		}
		res, err := show(ctx, b, menu, items)
		if err != nil && ctx.Err() != nil {
			err = nil
		}
		return resultMsg{res: res, err: err}
	}
}

// hide cancels the request in flight, which asks the plugin to hide its menu.
func (m *interactiveModel) hide() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *interactiveModel) runLast() tea.Msg {
	return lastMsg{err: m.host.mgr.Current().RunLastDefinition(m.ctx)}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("NFM Host"))
	b.WriteString(" ")
	b.WriteString(m.host.cfg.Plugin)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMenu:
		b.WriteString("Select a menu to show:\n\n")
		for i, menu := range config.Menus {
			line := menuStyle.Render(string(menu))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + string(menu)))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		help := "↑/↓ select • enter show • q quit"
		if m.host.mgr.Current().CanRunLastDefinition() {
			help = "↑/↓ select • enter show • r run last • q quit"
		}
		b.WriteString(helpStyle.Render(help))

	case stateInputItems:
		b.WriteString(fmt.Sprintf("Entries for %s\n\n", menuStyle.Render(string(config.MenuItems))))
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter show • esc back"))

	case stateWaiting:
		b.WriteString(fmt.Sprintf("Waiting for %s ", menuStyle.Render(string(config.Menus[m.selected]))))
		b.WriteString(opStyle.Render("(the plugin shows its own menu)"))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("esc hide • ctrl+c quit"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", menuStyle.Render(string(config.Menus[m.selected]))))
		switch {
		case m.err != nil:
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		case m.result.selected:
			b.WriteString(resultStyle.Render(m.result.value))
		default:
			b.WriteString(opStyle.Render("dismissed"))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	if m.status != "" {
		b.WriteString("\n\n")
		b.WriteString(m.status)
	}
	return b.String()
}

func runInteractive(ctx context.Context, h *host) error {
	p := tea.NewProgram(newInteractiveModel(ctx, h), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
