package mcpmgr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToolNameRoundTrip(t *testing.T) {
	t.Parallel()

	name := ToolName("github", "create_issue")
	require.Equal(t, "github__create_issue", name)

	server, tool, ok := SplitToolName(name)
	require.True(t, ok)
	require.Equal(t, "github", server)
	require.Equal(t, "create_issue", tool)

	// Raw tool names may themselves contain the separator.
	server, tool, ok = SplitToolName(ToolName("fs", "read__all"))
	require.True(t, ok)
	require.Equal(t, "fs", server)
	require.Equal(t, "read__all", tool)

	_, _, ok = SplitToolName("plain")
	require.False(t, ok)
}

func sampleRegistry() Registry {
	reg := Registry{}
	for _, ref := range []ToolRef{
		{"github", "create_issue"},
		{"github", "search"},
		{"web", "search"},
		{"fs", "read"},
	} {
		reg[ToolName(ref.Server, ref.Tool)] = Tool{ToolDescriptor: ToolDescriptor{Server: ref.Server, Name: ref.Tool}}
	}
	return reg
}

func TestRegistryNamesAndSummary(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry()
	require.Equal(t, []string{"fs__read", "github__create_issue", "github__search", "web__search"}, reg.Names())
	require.Equal(t, []ToolRef{
		{"fs", "read"},
		{"github", "create_issue"},
		{"github", "search"},
		{"web", "search"},
	}, reg.Summary())
}

func TestRegistrySelect(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry()

	gh, err := reg.Select("github__*")
	require.NoError(t, err)
	require.Equal(t, []string{"github__create_issue", "github__search"}, gh.Names())

	searches, err := reg.Select("*__search", "fs__read")
	require.NoError(t, err)
	require.Equal(t, []string{"fs__read", "github__search", "web__search"}, searches.Names())

	all, err := reg.Select()
	require.NoError(t, err)
	require.Len(t, all, 4)

	_, err = reg.Select("github__[")
	require.Error(t, err)
}

func TestRegistryInvokeErrors(t *testing.T) {
	t.Parallel()

	reg := sampleRegistry()
	if _, err := reg.Invoke(context.Background(), "missing__tool", nil); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	// Entries without an owning client cannot be invoked.
	if _, err := reg.Invoke(context.Background(), "web__search", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestRegistryInvokesThroughClient(t *testing.T) {
	t.Parallel()

	client, _ := connectInMemory(t, "mem", nil)
	reg := Registry{}
	for _, d := range client.Tools() {
		reg[ToolName(d.Server, d.Name)] = Tool{ToolDescriptor: d, client: client}
	}
	require.Same(t, client, reg["mem__search"].Client())

	res, err := reg.Invoke(context.Background(), "mem__search", map[string]any{"query": "via-registry"})
	require.NoError(t, err)
	require.Equal(t, "mem:via-registry", resultText(t, res))
}
