package view_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/view"
	_ "github.com/crisisbrief/crisisbrief/testing"
)

func TestEngineParsesEmbeddedTemplates(t *testing.T) {
	_, err := view.NewEngine()
	require.NoError(t, err)
}

func TestRenderStatusSetsContentTypeBeforeStatus(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)

	res := httptest.NewRecorder()
	err = engine.RenderStatus(res, 403, "pages/unauthorized.html", view.TemplateData{Title: "Unauthorized"})
	require.NoError(t, err)
	assert.Equal(t, 403, res.Code)
	// Result() snapshots headers as of WriteHeader; a header set after the
	// status line would be missing here.
	assert.Equal(t, "text/html; charset=utf-8", res.Result().Header.Get("Content-Type"))
}

func TestRenderPages(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)

	pages := []string{
		"pages/landing.html",
		"pages/home.html",
		"pages/login.html",
		"pages/register.html",
		"pages/unauthorized.html",
	}
	ident := &authz.Identity{ID: "u1", Email: "ada@test.local", Name: "Ada Lovelace", Role: shared.RoleAdmin}
	for _, page := range pages {
		t.Run(page, func(t *testing.T) {
			res := httptest.NewRecorder()
			err := engine.Render(res, page, view.TemplateData{
				Title:     "CrisisBrief",
				CSRFToken: "token",
				User:      ident,
				Flash:     &shared.FlashMessage{Kind: "success", Message: "Saved"},
			})
			require.NoError(t, err)
			assert.Contains(t, res.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, res.Body.String(), "</html>")
		})
	}
}
