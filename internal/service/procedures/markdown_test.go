package procedures

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnnouncer struct {
	titles  []string
	authors []string
	bodies  []string
	err     error
}

func (f *fakeAnnouncer) SendProcedurePublished(_ context.Context, title, author, markdown string) error {
	f.titles = append(f.titles, title)
	f.authors = append(f.authors, author)
	f.bodies = append(f.bodies, markdown)
	return f.err
}

func TestMarkdown(t *testing.T) {
	svc := setupService(t, &fakeLLM{output: "<h1>Bed Edging</h1><ol><li>Mark the line</li><li>Cut <strong>straight</strong></li></ol>"})
	ctx := context.Background()

	p, err := svc.Generate(ctx, "owner@example.com", GenerateRequest{Task: "Edge beds"})
	require.NoError(t, err)

	out, err := svc.Markdown(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "# Bed Edging")
	assert.Contains(t, out, "1. Mark the line")
	assert.Contains(t, out, "**straight**")
	assert.NotContains(t, out, "<li>")

	_, err = svc.Markdown(ctx, "missing")
	assert.ErrorIs(t, err, ErrProcedureNotFound)
}

func TestGenerate_Announces(t *testing.T) {
	svc := setupService(t, &fakeLLM{output: "<h1>Sharpen Blades</h1><p>Remove the blade first.</p>"})
	announcer := &fakeAnnouncer{}
	svc.SetAnnouncer(announcer)

	_, err := svc.Generate(context.Background(), "owner@example.com", GenerateRequest{Task: "Sharpen mower blades"})
	require.NoError(t, err)

	require.Len(t, announcer.titles, 1)
	assert.Equal(t, "Sharpen Blades", announcer.titles[0])
	assert.Equal(t, "owner@example.com", announcer.authors[0])
	assert.Contains(t, announcer.bodies[0], "Remove the blade first.")
}

func TestGenerate_AnnounceFailureIsNotFatal(t *testing.T) {
	svc := setupService(t, &fakeLLM{output: "<p>ok</p>"})
	svc.SetAnnouncer(&fakeAnnouncer{err: errors.New("webhook down")})

	p, err := svc.Generate(context.Background(), "o", GenerateRequest{Task: "t"})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 100))

	long := "line one\nline two\n" + strings.Repeat("x", 50)
	assert.Equal(t, "line one\nline two\n…", excerpt(long, 30))

	noBreak := strings.Repeat("y", 40)
	assert.Equal(t, strings.Repeat("y", 10)+"\n…", excerpt(noBreak, 10))
}
