package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"metarticles/internal/core"
	"metarticles/internal/server/database"
	"metarticles/internal/server/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testMaxUpload = 1 << 20

type fixture struct {
	store    *database.MemoryStore
	blobs    *storage.BlobStore
	dir      string
	identity *IdentityService
	articles *ArticleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := database.NewMemoryStore()
	dir := t.TempDir()
	blobs := storage.NewBlobStore(storage.NewFileSystemStore(dir))
	require.NoError(t, blobs.Init(context.Background()))

	identity := NewIdentityService(store)
	identity.HashCost = bcrypt.MinCost

	return &fixture{
		store:    store,
		blobs:    blobs,
		dir:      dir,
		identity: identity,
		articles: NewArticleService(store, store, blobs, testMaxUpload),
	}
}

// user seeds an account with password "secret1" and the given role straight
// into the store, so fixtures do not depend on the registration rules.
func (f *fixture) user(t *testing.T, username string, role core.Role) core.Actor {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &core.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return core.ActorFor(u)
}

// submit uploads a one-page PDF as actor.
func (f *fixture) submit(t *testing.T, actor core.Actor, title string) *core.Article {
	t.Helper()
	data := buildPDF(1)
	a, err := f.articles.Submit(context.Background(), actor, SubmitInput{
		Title:    title,
		Abstract: "About " + title,
		Keywords: "test",
		Category: "computer_science",
	}, bytes.NewReader(data), int64(len(data)), strings.ReplaceAll(title, " ", "_")+".pdf")
	require.NoError(t, err)
	return a
}

// buildPDF assembles a minimal well-formed PDF with the given number of
// blank pages, including a correct cross-reference table.
func buildPDF(pages int) []byte {
	var objects []string
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	)
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
