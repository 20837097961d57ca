package ui

import (
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

const MAX_HISTORY = 20

// CommandInput is a one-line console. Enter submits, Escape cancels and the
// arrow keys walk through earlier commands.
type CommandInput struct {
	Text     string
	IsActive bool
	X, Y     int
	Width    int
	Height   int
	OnSubmit func(string)

	history []string
	cursor  int
}

func NewCommandInput(x, y, width, height int, onSubmit func(string)) *CommandInput {
	return &CommandInput{
		X:        x,
		Y:        y,
		Width:    width,
		Height:   height,
		OnSubmit: onSubmit,
	}
}

func (ci *CommandInput) Update() {
	if !ci.IsActive {
		return
	}

	ci.Text += string(ebiten.AppendInputChars(nil))

	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(ci.Text) > 0 {
		ci.Text = ci.Text[:len(ci.Text)-1]
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && ci.cursor > 0 {
		ci.cursor--
		ci.Text = ci.history[ci.cursor]
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && ci.cursor < len(ci.history) {
		ci.cursor++
		ci.Text = ""
		if ci.cursor < len(ci.history) {
			ci.Text = ci.history[ci.cursor]
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		ci.Text = ""
		ci.IsActive = false
		return
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		cmd := strings.TrimSpace(ci.Text)
		if cmd != "" {
			ci.remember(cmd)
			if ci.OnSubmit != nil {
				ci.OnSubmit(cmd)
			}
		}
		ci.Text = ""
		ci.IsActive = false
	}
}

func (ci *CommandInput) remember(cmd string) {
	ci.history = append(ci.history, cmd)
	if len(ci.history) > MAX_HISTORY {
		ci.history = ci.history[len(ci.history)-MAX_HISTORY:]
	}
	ci.cursor = len(ci.history)
}

func (ci *CommandInput) Draw(screen *ebiten.Image) {
	x, y, w, h := float32(ci.X), float32(ci.Y), float32(ci.Width), float32(ci.Height)

	bgColor := color.RGBA{50, 50, 50, 220}
	if ci.IsActive {
		bgColor = color.RGBA{80, 80, 80, 240}
	}
	vector.DrawFilledRect(screen, x, y, w, h, bgColor, false)
	vector.StrokeRect(screen, x, y, w, h, 1, color.White, false)

	displayTxt := ci.Text
	if ci.IsActive {
		displayTxt += "_"
	} else if displayTxt == "" {
		displayTxt = "click to type a command"
	}
	ebitenutil.DebugPrintAt(screen, displayTxt, ci.X+5, ci.Y+(ci.Height-16)/2)
}

// IsClicked reports whether the point is inside the input box.
func (ci *CommandInput) IsClicked(mouseX, mouseY int) bool {
	return mouseX >= ci.X && mouseX <= ci.X+ci.Width &&
		mouseY >= ci.Y && mouseY <= ci.Y+ci.Height
}
