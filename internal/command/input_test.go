package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputPopupLifecycle(t *testing.T) {
	var in Input

	in.Change("/")
	assert.True(t, in.PopupVisible())
	assert.Len(t, in.Candidates(), len(Table()))

	in.Change("/ne")
	assert.Equal(t, []string{"neko"}, ids(in.Candidates()))

	in.Key(KeyEscape)
	assert.False(t, in.PopupVisible())
	assert.Equal(t, "/ne", in.Value())

	in.Change("/nek")
	assert.True(t, in.PopupVisible())

	in.Change("/nekx")
	assert.False(t, in.PopupVisible())
	assert.Nil(t, in.Candidates())

	in.Change("nek")
	assert.False(t, in.PopupVisible())
}

func TestInputChooseInstantSends(t *testing.T) {
	var in Input
	in.Change("/h")
	hug, _ := Lookup(IDHug)

	action, msg, send := in.Choose(hug)
	assert.Equal(t, ActionSend, action.Kind)
	assert.True(t, send)
	assert.Equal(t, "/hug", msg)
	assert.Empty(t, in.Value())
	assert.False(t, in.PopupVisible())
}

func TestInputChooseFillStages(t *testing.T) {
	var in Input
	in.Change("/t")
	tts, _ := Lookup(IDTTS)

	action, msg, send := in.Choose(tts)
	assert.Equal(t, ActionStage, action.Kind)
	assert.False(t, send)
	assert.Empty(t, msg)
	assert.Equal(t, "/tts ", in.Value())
	assert.False(t, in.PopupVisible())

	in.Change(in.Value() + "hello there")
	got, ok := in.Key(KeyEnter)
	assert.True(t, ok)
	assert.Equal(t, "/tts hello there", got)
	assert.Empty(t, in.Value())
}

func TestInputSubmitBlank(t *testing.T) {
	var in Input
	in.Change("   ")
	_, ok := in.Submit()
	assert.False(t, ok)
}

func TestCompleter(t *testing.T) {
	var c Completer

	got, n := c.Do([]rune("/t"), 2)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]rune{[]rune("ts ")}, got)

	got, n = c.Do([]rune("/ne"), 3)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][]rune{[]rune("ko")}, got)

	got, _ = c.Do([]rune("/tts hi"), 7)
	assert.Nil(t, got)

	got, _ = c.Do([]rune("hello"), 5)
	assert.Nil(t, got)
}
