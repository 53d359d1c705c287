package widget

import "sync"

// PasswordInput is the state of a password field with a visibility toggle.
type PasswordInput interface {
	Visible() bool
	Disabled() bool
	Invalid() bool
	Focused() bool

	Focus()
	Blur()
	SetVisible(visible bool)
	ToggleVisible()
	SetDisabled(disabled bool)
	SetInvalid(invalid bool)

	RootProps() Props
	LabelProps() Props
	InputProps() Props
	VisibilityTriggerProps() Props
	IndicatorProps() Props
	ControlProps() Props
}

// PasswordInputProps configure a PasswordInput
type PasswordInputProps struct {
	ID             string
	Name           string
	AutoComplete   string // defaults to "current-password"
	DefaultVisible bool
	Disabled       bool
	Invalid        bool
	ReadOnly       bool
	Required       bool

	// OnVisibilityChange runs after every visibility change
	OnVisibilityChange func(visible bool)
}

type passwordInput struct {
	mu       sync.Mutex
	props    PasswordInputProps
	visible  bool
	focused  bool
	disabled bool
	invalid  bool
}

// NewPasswordInput creates a password input in its initial state
func NewPasswordInput(props PasswordInputProps) PasswordInput {
	if props.ID == "" {
		props.ID = "password"
	}
	if props.AutoComplete == "" {
		props.AutoComplete = "current-password"
	}
	return &passwordInput{
		props:    props,
		visible:  props.DefaultVisible,
		disabled: props.Disabled,
		invalid:  props.Invalid,
	}
}

func (p *passwordInput) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *passwordInput) Disabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabled
}

func (p *passwordInput) Invalid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.invalid
}

func (p *passwordInput) Focused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// Focus moves focus to the input. Disabled inputs cannot take focus.
func (p *passwordInput) Focus() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.disabled {
		p.focused = true
	}
}

func (p *passwordInput) Blur() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focused = false
}

// SetVisible shows or hides the password. Ignored while disabled.
func (p *passwordInput) SetVisible(visible bool) {
	p.mu.Lock()
	if p.disabled || p.visible == visible {
		p.mu.Unlock()
		return
	}
	p.visible = visible
	cb := p.props.OnVisibilityChange
	p.mu.Unlock()

	if cb != nil {
		cb(visible)
	}
}

func (p *passwordInput) ToggleVisible() {
	p.SetVisible(!p.Visible())
}

// SetDisabled disables the input; a disabled input also loses focus.
func (p *passwordInput) SetDisabled(disabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled = disabled
	if disabled {
		p.focused = false
	}
}

func (p *passwordInput) SetInvalid(invalid bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid = invalid
}

func (p *passwordInput) ids() (root, input, label string) {
	base := "password-input:" + p.props.ID
	return base, base + ":input", base + ":label"
}

func (p *passwordInput) state() string {
	if p.visible {
		return "visible"
	}
	return "hidden"
}

func (p *passwordInput) RootProps() Props {
	p.mu.Lock()
	defer p.mu.Unlock()
	root, _, _ := p.ids()
	props := parts("password-input", "root")
	props["id"] = root
	props["data-state"] = p.state()
	return props.flag("data-disabled", p.disabled).
		flag("data-invalid", p.invalid).
		flag("data-readonly", p.props.ReadOnly)
}

func (p *passwordInput) LabelProps() Props {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, input, label := p.ids()
	props := parts("password-input", "label")
	props["id"] = label
	props["htmlFor"] = input
	return props.flag("data-disabled", p.disabled).
		flag("data-invalid", p.invalid).
		flag("data-required", p.props.Required)
}

func (p *passwordInput) InputProps() Props {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, input, _ := p.ids()
	typ := "password"
	if p.visible {
		typ = "text"
	}
	props := parts("password-input", "input")
	props["id"] = input
	props["type"] = typ
	props["name"] = p.props.Name
	props["autoComplete"] = p.props.AutoComplete
	props["autoCapitalize"] = "off"
	props["spellCheck"] = false
	props["disabled"] = p.disabled
	props["readOnly"] = p.props.ReadOnly
	props["required"] = p.props.Required
	props["aria-invalid"] = p.invalid
	props["data-state"] = p.state()
	return props.flag("data-invalid", p.invalid)
}

func (p *passwordInput) VisibilityTriggerProps() Props {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, input, _ := p.ids()
	label := "Show password"
	if p.visible {
		label = "Hide password"
	}
	props := parts("password-input", "visibility-trigger")
	props["type"] = "button"
	props["tabIndex"] = -1
	props["aria-controls"] = input
	props["aria-expanded"] = p.visible
	props["aria-label"] = label
	props["disabled"] = p.disabled
	props["data-state"] = p.state()
	return props.flag("data-readonly", p.props.ReadOnly)
}

func (p *passwordInput) IndicatorProps() Props {
	p.mu.Lock()
	defer p.mu.Unlock()
	props := parts("password-input", "indicator")
	props["aria-hidden"] = true
	props["data-state"] = p.state()
	return props.flag("data-disabled", p.disabled)
}

func (p *passwordInput) ControlProps() Props {
	p.mu.Lock()
	defer p.mu.Unlock()
	props := parts("password-input", "control")
	return props.flag("data-disabled", p.disabled).
		flag("data-invalid", p.invalid).
		flag("data-focus", p.focused)
}
