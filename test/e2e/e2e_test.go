//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E runs the full API flow against real Postgres and S3 containers.
// Subtests build on each other: auth first, then knowledge bases, then
// documents, then chat over the indexed corpus.
func TestE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E tests in short mode")
	}

	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("Auth", func(t *testing.T) {
		t.Run("login issues a session token", func(t *testing.T) {
			resp, err := env.Post("/login", map[string]string{"work_email": "newhire@example.com"}, "")
			require.NoError(t, err)

			var data struct {
				Token string `json:"token"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &data))
			assert.True(t, strings.HasPrefix(data.Token, "pct_"))
			assert.Len(t, data.Token, 68)
		})

		t.Run("login rejects malformed email", func(t *testing.T) {
			_, err := env.Post("/login", map[string]string{"work_email": "not-an-email"}, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 400")
		})

		t.Run("protected routes require a token", func(t *testing.T) {
			_, err := env.Get("/knowledge-bases", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 401")
		})

		t.Run("logout invalidates the token", func(t *testing.T) {
			token := env.LoginAs("throwaway@example.com")

			_, err := env.Get("/knowledge-bases", token)
			require.NoError(t, err)

			_, err = env.Post("/logout", nil, token)
			require.NoError(t, err)

			_, err = env.Get("/knowledge-bases", token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 401")
		})
	})

	env.Login("analyst@example.com")

	type kbResponse struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Description    string `json:"description"`
		Author         string `json:"author"`
		TotalDocuments int    `json:"total_documents"`
	}

	var kbID string

	t.Run("KnowledgeBases", func(t *testing.T) {
		t.Run("create", func(t *testing.T) {
			resp, err := env.Post("/knowledge-bases", map[string]string{
				"name":        "HR Policies",
				"description": "Employee handbook and HR procedures",
			}, env.AuthToken)
			require.NoError(t, err)

			var kb kbResponse
			require.NoError(t, json.Unmarshal(resp.Data, &kb))
			assert.NotEmpty(t, kb.ID)
			assert.Equal(t, "HR Policies", kb.Name)
			assert.Equal(t, "analyst@example.com", kb.Author)
			assert.Equal(t, 0, kb.TotalDocuments)

			kbID = kb.ID
		})

		t.Run("duplicate name is rejected", func(t *testing.T) {
			_, err := env.Post("/knowledge-bases", map[string]string{
				"name":        "HR Policies",
				"description": "second copy",
			}, env.AuthToken)
			require.Error(t, err)
		})

		t.Run("get and list", func(t *testing.T) {
			resp, err := env.Get("/knowledge-bases/"+kbID, env.AuthToken)
			require.NoError(t, err)

			var kb kbResponse
			require.NoError(t, json.Unmarshal(resp.Data, &kb))
			assert.Equal(t, "HR Policies", kb.Name)

			listResp, err := env.Get("/knowledge-bases", env.AuthToken)
			require.NoError(t, err)

			var kbs []kbResponse
			require.NoError(t, json.Unmarshal(listResp.Data, &kbs))
			require.Len(t, kbs, 1)
			assert.Equal(t, kbID, kbs[0].ID)
		})

		t.Run("update", func(t *testing.T) {
			resp, err := env.Put("/knowledge-bases/"+kbID, map[string]string{
				"name":        "HR Policies",
				"description": "Employee handbook, HR procedures and benefits",
			}, env.AuthToken)
			require.NoError(t, err)

			var kb kbResponse
			require.NoError(t, json.Unmarshal(resp.Data, &kb))
			assert.Equal(t, "Employee handbook, HR procedures and benefits", kb.Description)
		})
	})

	type docResponse struct {
		ID              string   `json:"id"`
		Name            string   `json:"name"`
		Author          string   `json:"author"`
		KnowledgeBaseID string   `json:"knowledge_base_id"`
		DocumentURL     string   `json:"document_url"`
		Summary         string   `json:"summary"`
		LinesOfService  []string `json:"lines_of_service"`
		Profiles        []string `json:"profiles"`
		IndexStatus     string   `json:"index_status"`
	}

	var docID string
	policyText := []byte("Remote work policy: employees may work remotely up to three days per week with manager approval.")

	t.Run("Documents", func(t *testing.T) {
		t.Run("upload indexes the document", func(t *testing.T) {
			resp, err := env.UploadDocument("POST", "/knowledge-bases/"+kbID+"/documents", map[string]string{
				"name":             "Remote Work Policy",
				"summary":          "Rules for remote work",
				"lines_of_service": "hr,benefits",
				"profiles":         "all-employees",
			}, "remote-work.txt", policyText)
			require.NoError(t, err)

			var doc docResponse
			require.NoError(t, json.Unmarshal(resp.Data, &doc))
			assert.NotEmpty(t, doc.ID)
			assert.Equal(t, "Remote Work Policy", doc.Name)
			assert.Equal(t, "analyst@example.com", doc.Author)
			assert.Equal(t, kbID, doc.KnowledgeBaseID)
			assert.Equal(t, []string{"hr", "benefits"}, doc.LinesOfService)
			assert.Equal(t, "indexed", doc.IndexStatus)
			// summary comes from the chat model, not the form field
			assert.Equal(t, "Covers the company policy in scope.", doc.Summary)

			docID = doc.ID
		})

		t.Run("upload without file is rejected", func(t *testing.T) {
			_, err := env.UploadDocument("POST", "/knowledge-bases/"+kbID+"/documents", map[string]string{
				"name": "no file attached",
			}, "", nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 400")
		})

		t.Run("get returns a working download URL", func(t *testing.T) {
			resp, err := env.Get("/documents/"+docID, env.AuthToken)
			require.NoError(t, err)

			var doc docResponse
			require.NoError(t, json.Unmarshal(resp.Data, &doc))
			require.NotEmpty(t, doc.DocumentURL)

			downloaded, err := env.DownloadFile(doc.DocumentURL)
			require.NoError(t, err)
			assert.Equal(t, policyText, downloaded)
		})

		t.Run("list by knowledge base", func(t *testing.T) {
			resp, err := env.Get("/knowledge-bases/"+kbID+"/documents", env.AuthToken)
			require.NoError(t, err)

			var docs []docResponse
			require.NoError(t, json.Unmarshal(resp.Data, &docs))
			require.Len(t, docs, 1)
			assert.Equal(t, docID, docs[0].ID)
		})

		t.Run("list across knowledge bases pages by cursor", func(t *testing.T) {
			resp, err := env.Get("/documents?limit=1", env.AuthToken)
			require.NoError(t, err)

			var page struct {
				Items []docResponse `json:"items"`
				Next  string        `json:"next_cursor"`
				More  bool          `json:"has_more"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &page))
			require.Len(t, page.Items, 1)
			assert.Equal(t, docID, page.Items[0].ID)
			assert.False(t, page.More)
		})

		t.Run("document count follows uploads", func(t *testing.T) {
			resp, err := env.Get("/knowledge-bases/"+kbID, env.AuthToken)
			require.NoError(t, err)

			var kb kbResponse
			require.NoError(t, json.Unmarshal(resp.Data, &kb))
			assert.Equal(t, 1, kb.TotalDocuments)
		})

		t.Run("update metadata", func(t *testing.T) {
			resp, err := env.UploadDocument("PUT", "/documents/"+docID, map[string]string{
				"name":    "Remote Work Policy v2",
				"summary": "Updated rules for remote work",
			}, "", nil)
			require.NoError(t, err)

			var doc docResponse
			require.NoError(t, json.Unmarshal(resp.Data, &doc))
			assert.Equal(t, "Remote Work Policy v2", doc.Name)
			assert.Equal(t, "Updated rules for remote work", doc.Summary)
		})

		t.Run("knowledge base delete cascades to documents", func(t *testing.T) {
			resp, err := env.Post("/knowledge-bases", map[string]string{
				"name":        "Scratch Policies",
				"description": "throwaway base",
			}, env.AuthToken)
			require.NoError(t, err)

			var scratch kbResponse
			require.NoError(t, json.Unmarshal(resp.Data, &scratch))

			resp, err = env.UploadDocument("POST", "/knowledge-bases/"+scratch.ID+"/documents", map[string]string{
				"name": "Scratch Policy",
			}, "scratch.txt", []byte("Scratch policy text for cascade checks."))
			require.NoError(t, err)

			var scratchDoc docResponse
			require.NoError(t, json.Unmarshal(resp.Data, &scratchDoc))

			_, err = env.Delete("/knowledge-bases/"+scratch.ID, env.AuthToken)
			require.NoError(t, err)

			_, err = env.Get("/knowledge-bases/"+scratch.ID, env.AuthToken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 404")

			_, err = env.Get("/documents/"+scratchDoc.ID, env.AuthToken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 404")
		})

		t.Run("another user cannot delete the knowledge base", func(t *testing.T) {
			intruderToken := env.LoginAs("intruder@example.com")

			req, err := http.NewRequest(http.MethodDelete, env.ServerURL+"/knowledge-bases/"+kbID, nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+intruderToken)
			res, err := env.HTTPClient.Do(req)
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, http.StatusForbidden, res.StatusCode)
		})
	})

	t.Run("Chat", func(t *testing.T) {
		sessionID := "session-e2e-1"

		t.Run("stream carries events, sources and deltas", func(t *testing.T) {
			body, err := env.Chat(sessionID, "How many days per week can I work remotely?")
			require.NoError(t, err)

			assert.Contains(t, body, "data: e: ")
			assert.Contains(t, body, "Searching relevant documents")
			assert.Contains(t, body, `"toolName":"internal_document_event"`)
			assert.Contains(t, body, "data: 0: ")
			assert.Contains(t, body, "Remote Work Policy v2")
			assert.Contains(t, body, "data: [DONE]")
		})

		var assistantMessageID string

		t.Run("session persists the turn", func(t *testing.T) {
			resp, err := env.Get("/chat/sessions/"+sessionID, env.AuthToken)
			require.NoError(t, err)

			var session struct {
				ID       string `json:"id"`
				Title    string `json:"title"`
				Messages []struct {
					ID          string   `json:"id"`
					Role        string   `json:"role"`
					Content     string   `json:"content"`
					DocumentIDs []string `json:"document_ids"`
				} `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &session))
			assert.Equal(t, sessionID, session.ID)
			assert.Equal(t, "How many days per week can I work remotely?", session.Title)
			require.Len(t, session.Messages, 2)
			assert.Equal(t, "user", session.Messages[0].Role)
			assert.Equal(t, "assistant", session.Messages[1].Role)
			assert.Equal(t, "According to the policy, yes.", session.Messages[1].Content)
			assert.Contains(t, session.Messages[1].DocumentIDs, docID)

			assistantMessageID = session.Messages[1].ID
		})

		t.Run("sessions list in the today bucket", func(t *testing.T) {
			resp, err := env.Get("/chat/sessions", env.AuthToken)
			require.NoError(t, err)

			var buckets map[string][]struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &buckets))
			require.Len(t, buckets["today"], 1)
			assert.Equal(t, sessionID, buckets["today"][0].ID)
		})

		t.Run("rate the assistant message", func(t *testing.T) {
			path := fmt.Sprintf("/chat/sessions/%s/messages/%s/rate", sessionID, assistantMessageID)
			_, err := env.Post(path, map[string]string{"rating": "up"}, env.AuthToken)
			require.NoError(t, err)

			_, err = env.Post(path, map[string]string{"rating": "sideways"}, env.AuthToken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 400")
		})

		t.Run("download transcript", func(t *testing.T) {
			req, err := http.NewRequest("GET", env.ServerURL+"/chat/sessions/"+sessionID+"/download", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+env.AuthToken)

			resp, err := env.HTTPClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
			assert.Contains(t, resp.Header.Get("Content-Disposition"), "chat_"+sessionID)
		})

		t.Run("another user cannot read the session", func(t *testing.T) {
			intruder := env.LoginAs("intruder@example.com")
			_, err := env.Get("/chat/sessions/"+sessionID, intruder)
			require.Error(t, err)
		})

		t.Run("delete session", func(t *testing.T) {
			_, err := env.Delete("/chat/sessions/"+sessionID, env.AuthToken)
			require.NoError(t, err)

			_, err = env.Get("/chat/sessions/"+sessionID, env.AuthToken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 404")
		})
	})

	t.Run("Cleanup", func(t *testing.T) {
		t.Run("delete document then knowledge base", func(t *testing.T) {
			_, err := env.Delete("/documents/"+docID, env.AuthToken)
			require.NoError(t, err)

			resp, err := env.Get("/knowledge-bases/"+kbID, env.AuthToken)
			require.NoError(t, err)

			var kb kbResponse
			require.NoError(t, json.Unmarshal(resp.Data, &kb))
			assert.Equal(t, 0, kb.TotalDocuments)

			_, err = env.Delete("/knowledge-bases/"+kbID, env.AuthToken)
			require.NoError(t, err)

			_, err = env.Get("/knowledge-bases/"+kbID, env.AuthToken)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "HTTP 404")
		})
	})
}
