package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	registrationsCSV = "User ID,Customer Name,Registration Date,First Deposit,Deposit Count\n" +
		"U1,Alice,2024-01-01,100,1\n" +
		"U2,Bob,2024-02-01,,0\n"
	activityCSV = "User ID;Withdrawals;Position Count;Lot Amount;Commissions\n" +
		"U1;20;3;2;0\n" +
		"U3;5;0;0;\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestEngine(t *testing.T) (*Engine, *db.MemoryDB, string) {
	t.Helper()
	out := t.TempDir()
	store := db.NewMemoryDB()
	return NewEngine(out, store, zap.NewNop()), store, out
}

func TestEngine_ProcessFiles(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	dir := t.TempDir()
	reg := writeFile(t, dir, "Registrati-1.csv", registrationsCSV)
	act := writeFile(t, dir, "ActivityRe-1.csv", activityCSV)

	rows, err := engine.ProcessFiles(context.Background(), reg, act)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "U2", rows[0].UserID)
	assert.Equal(t, "U1", rows[1].UserID)
	assert.Equal(t, "U3", rows[2].UserID)

	u1 := rows[1]
	assert.Equal(t, "Alice", *u1.Nome)
	assert.Equal(t, 1, u1.Depositato)
	assert.Equal(t, 100.0, *u1.Importo)
	assert.Equal(t, 20.0, *u1.Prelievi)
	assert.Equal(t, 1, u1.Operativo)
	assert.Equal(t, 1, u1.Qualificato)
	assert.Equal(t, 1, u1.NoCommissioni)

	u3 := rows[2]
	assert.Nil(t, u3.Nome)
	assert.Nil(t, u3.Data)
	assert.Nil(t, u3.Commissioni)
	assert.Equal(t, 5.0, *u3.Prelievi)
}

func TestEngine_ProcessFilesUnsupported(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	dir := t.TempDir()
	reg := writeFile(t, dir, "Registrati-1.pdf", "%PDF")
	act := writeFile(t, dir, "ActivityRe-1.csv", activityCSV)

	_, err := engine.ProcessFiles(context.Background(), reg, act)
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestEngine_ProcessFilesMissingFile(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	dir := t.TempDir()
	act := writeFile(t, dir, "ActivityRe-1.csv", activityCSV)

	_, err := engine.ProcessFiles(context.Background(), filepath.Join(dir, "missing.csv"), act)
	assert.Error(t, err)
}

func TestEngine_RunAll(t *testing.T) {
	engine, store, out := newTestEngine(t)
	inbox := t.TempDir()
	writeFile(t, inbox, "Registrati-1.csv", registrationsCSV)
	writeFile(t, inbox, "ActivityRe-1.csv", activityCSV)
	writeFile(t, inbox, "notes.txt", "ignored")

	rows, err := engine.RunAll(context.Background(), inbox)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	clients, err := store.GetClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 3)
	assert.Equal(t, "U1", clients[0].UserID)
	assert.True(t, clients[0].Depositato)
	assert.True(t, clients[0].Registrato)

	uploads, err := store.GetUploads(context.Background())
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "Registrati-1.csv", uploads[0].RegistrationsFile)
	assert.Equal(t, "ActivityRe-1.csv", uploads[0].ActivityFile)
	assert.Equal(t, 3, uploads[0].Rows)
	assert.Equal(t, "completed", uploads[0].Status)

	_, err = os.Stat(filepath.Join(out, consolidatedFile))
	assert.NoError(t, err)
}

func TestEngine_RunAllNeedsBothReports(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	inbox := t.TempDir()
	writeFile(t, inbox, "Registrati-1.csv", registrationsCSV)

	_, err := engine.RunAll(context.Background(), inbox)
	assert.ErrorIs(t, err, ErrIncompletePair)
}

func TestLatestReport(t *testing.T) {
	dir := t.TempDir()
	older := writeFile(t, dir, "Registrati-old.csv", registrationsCSV)
	newer := writeFile(t, dir, "Registrati-new.csv", registrationsCSV)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	got, err := latestReport(dir, RegistrationsPrefix)
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	got, err = latestReport(dir, ActivityPrefix)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_Watch(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	inbox := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Watch(ctx, inbox, 50*time.Millisecond) }()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)
	writeFile(t, inbox, "Registrati-1.csv", registrationsCSV)
	writeFile(t, inbox, "ActivityRe-1.csv", activityCSV)

	require.Eventually(t, func() bool {
		clients, err := store.GetClients(context.Background())
		return err == nil && len(clients) == 3
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}

func TestEngine_ProcessFilesCancelled(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	dir := t.TempDir()
	reg := writeFile(t, dir, "Registrati-1.csv", registrationsCSV)
	act := writeFile(t, dir, "ActivityRe-1.csv", activityCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.ProcessFiles(ctx, reg, act)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_ProcessFilesSheet(t *testing.T) {
	dir := t.TempDir()
	reg := writeFile(t, dir, "Registrati-1.csv", registrationsCSV)

	f := excelize.NewFile()
	_, err := f.NewSheet("Activity")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Activity", "A1", &[]any{"User ID", "Withdrawals"}))
	require.NoError(t, f.SetSheetRow("Activity", "A2", &[]any{"U3", "5"}))
	act := filepath.Join(dir, "ActivityRe-1.xlsx")
	require.NoError(t, f.SaveAs(act))
	require.NoError(t, f.Close())

	engine, _, _ := newTestEngine(t)
	rows, err := engine.ProcessFiles(context.Background(), reg, act)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "the empty first sheet contributes nothing")

	engine.Sheet = "Activity"
	rows, err = engine.ProcessFiles(context.Background(), reg, act)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "U3", rows[2].UserID)
	assert.Equal(t, 5.0, *rows[2].Prelievi)
}
