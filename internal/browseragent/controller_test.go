package browseragent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteActionRefusesBeforeLaunch(t *testing.T) {
	c := NewController(newFakeBrowser(), "")
	res := c.ExecuteAction(context.Background(), "refresh", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "browser not launched")

	// The bootstrap action is exempt.
	res = c.ExecuteAction(context.Background(), "init", nil)
	assert.True(t, res.Success)
}

func TestExecuteActionRecordsHistoryAndTiming(t *testing.T) {
	c := NewController(newFakeBrowser(), "")
	c.MarkLaunched()

	ok := c.ExecuteAction(context.Background(), "goto", map[string]any{"url": "https://example.com"})
	assert.True(t, ok.Success)
	assert.False(t, ok.Timestamp.IsZero())

	bad := c.ExecuteAction(context.Background(), "goto", map[string]any{"url": "not-a-url"})
	assert.False(t, bad.Success)
	assert.Contains(t, bad.Error, "pattern")

	hist := c.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "goto", hist[0].ActionName)
	assert.True(t, hist[0].Success)
	assert.False(t, hist[1].Success)
}

func TestDoneActionSurfacesIsDone(t *testing.T) {
	c := NewController(newFakeBrowser(), "")
	c.MarkLaunched()

	res := c.ExecuteAction(context.Background(), "done", map[string]any{"success": true, "text": "finished"})
	assert.True(t, res.IsDone)
	assert.True(t, res.Success)
	assert.Equal(t, "finished", res.Result)

	res = c.ExecuteAction(context.Background(), "done", map[string]any{"success": false, "text": "gave up"})
	assert.True(t, res.IsDone)
	assert.False(t, res.Success)
}

func TestUploadFileConfinedToSandbox(t *testing.T) {
	browser := newFakeBrowser()
	c := NewController(browser, t.TempDir())
	c.MarkLaunched()

	res := c.ExecuteAction(context.Background(), "upload_file", map[string]any{
		"selector": "#file", "file_path": "../../etc/passwd",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "traversal")

	res = c.ExecuteAction(context.Background(), "upload_file", map[string]any{
		"selector": "#file", "file_path": "uploads/report.pdf",
	})
	assert.True(t, res.Success)
	recorded := browser.recorded()
	require.NotEmpty(t, recorded)
	assert.Contains(t, recorded[len(recorded)-1], "uploads/report.pdf")
}

func TestSoftFailureNavigation(t *testing.T) {
	c := NewController(newFakeBrowser(), "")
	c.MarkLaunched()
	res := c.ExecuteAction(context.Background(), "go_back", nil)
	assert.True(t, res.Success, "empty history stack is a soft failure, not an error")
}
