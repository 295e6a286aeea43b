package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ilzarachman/chatbot-helpdesk/internal/chat"
	"github.com/ilzarachman/chatbot-helpdesk/internal/conversation"
	"github.com/ilzarachman/chatbot-helpdesk/internal/document"
	"github.com/ilzarachman/chatbot-helpdesk/internal/knowledge"
	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
	"github.com/ilzarachman/chatbot-helpdesk/internal/question"
)

func testLogger() log.Logger { return log.NewNop() }

type mockResponder struct {
	req    chat.Request
	chunks []chat.Chunk
	err    error
}

func (m *mockResponder) Respond(ctx context.Context, req chat.Request) (<-chan chat.Chunk, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan chat.Chunk, len(m.chunks))
	for _, c := range m.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

type mockTurns struct {
	uid   string
	owner conversation.Identity
	turn  conversation.HistoryTurn
	err   error
}

func (m *mockTurns) AppendTurn(ctx context.Context, uid string, owner conversation.Identity, turn conversation.HistoryTurn) error {
	m.uid, m.owner, m.turn = uid, owner, turn
	return m.err
}

type mockConversations struct {
	created   *conversation.Conversation
	createErr error
	listed    []conversation.Conversation
	turns     []conversation.HistoryTurn
	err       error
}

func (m *mockConversations) Create(ctx context.Context, owner conversation.Identity, name string) (*conversation.Conversation, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = &conversation.Conversation{UID: "conv-1", Name: name}
	return m.created, nil
}

func (m *mockConversations) List(ctx context.Context, owner conversation.Identity) ([]conversation.Conversation, error) {
	return m.listed, m.err
}

func (m *mockConversations) Transcript(ctx context.Context, uid string, owner conversation.Identity) (*conversation.Conversation, []conversation.HistoryTurn, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return &conversation.Conversation{UID: uid}, m.turns, nil
}

type mockTitler struct {
	title string
	err   error
}

func (m *mockTitler) Generate(ctx context.Context, seed string) (string, error) {
	return m.title, m.err
}

type mockDocs struct {
	saved    *document.Document
	saveErr  error
	retried  string
	retryErr error
}

func (m *mockDocs) Save(ctx context.Context, name string, r io.Reader, topic string, visibility knowledge.Visibility) (document.Document, error) {
	if m.saveErr != nil {
		return document.Document{}, m.saveErr
	}
	doc := document.Document{UID: "doc-1", Name: name, Topic: topic, Visibility: visibility, Status: document.StatusPending}
	m.saved = &doc
	return doc, nil
}

func (m *mockDocs) Retry(ctx context.Context, uid string) (document.Document, error) {
	if m.retryErr != nil {
		return document.Document{}, m.retryErr
	}
	m.retried = uid
	return document.Document{UID: uid, Status: document.StatusPending}, nil
}

type mockQuestions struct {
	created   *question.Question
	answered  string
	answer    question.Answer
	answerErr error
	listed    []question.Question
	deleted   string
}

func (m *mockQuestions) Create(ctx context.Context, q question.Question) (question.Question, error) {
	q.UID = "q-1"
	m.created = &q
	return q, nil
}

func (m *mockQuestions) List(ctx context.Context) ([]question.Question, error) {
	return m.listed, nil
}

func (m *mockQuestions) Answer(ctx context.Context, uid string, ans question.Answer) (question.Question, error) {
	if m.answerErr != nil {
		return question.Question{}, m.answerErr
	}
	m.answered, m.answer = uid, ans
	return question.Question{UID: uid, Prompt: "p", StaffAnswer: ans.Text, Topic: ans.Topic, Visibility: ans.Visibility}, nil
}

func (m *mockQuestions) Delete(ctx context.Context, uid string) error {
	m.deleted = uid
	return nil
}

type mockEnqueuer struct {
	uids []string
}

func (m *mockEnqueuer) Enqueue(uid string) bool {
	m.uids = append(m.uids, uid)
	return true
}

type testServer struct {
	handler   http.Handler
	responder *mockResponder
	turns     *mockTurns
	convs     *mockConversations
	titler    *mockTitler
	docs      *mockDocs
	queue     *mockEnqueuer
	questions *mockQuestions
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		responder: &mockResponder{chunks: []chat.Chunk{{Text: "hal"}, {Text: "o!"}}},
		turns:     &mockTurns{},
		convs:     &mockConversations{},
		titler:    &mockTitler{title: "Judul Percakapan"},
		docs:      &mockDocs{},
		queue:     &mockEnqueuer{},
		questions: &mockQuestions{},
	}
	srv := NewServer(ServerConfig{
		Responder:     ts.responder,
		Turns:         ts.turns,
		Conversations: ts.convs,
		Titler:        ts.titler,
		Documents:     ts.docs,
		Ingest:        ts.queue,
		Questions:     ts.questions,
		RateLimit:     1000,
		RateBurst:     1000,
	})
	ts.handler = srv.Handler()
	return ts
}

func asStudent(r *http.Request) *http.Request {
	r.Header.Set(headerUserID, "student-1")
	r.Header.Set(headerUserClass, "student")
	return r
}

func asStaff(r *http.Request) *http.Request {
	r.Header.Set(headerUserID, "staff-1")
	r.Header.Set(headerUserClass, "staff")
	return r
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(raw)
}

func TestPromptStreamsTokens(t *testing.T) {
	ts := newTestServer(t)

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/chat/prompt",
		jsonBody(t, map[string]string{"message": "halo", "conversation_uid": "conv-1"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != "halo!" {
		t.Errorf("body = %q, want %q", got, "halo!")
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if ts.responder.req.Identity == nil || ts.responder.req.Identity.ID != "student-1" {
		t.Errorf("identity not forwarded: %+v", ts.responder.req.Identity)
	}
	if ts.responder.req.ConversationUID != "conv-1" {
		t.Errorf("conversation uid not forwarded: %q", ts.responder.req.ConversationUID)
	}
}

func TestPromptMidStreamFailureMarksBody(t *testing.T) {
	ts := newTestServer(t)
	ts.responder.chunks = []chat.Chunk{{Text: "sebagian "}, {Err: errors.New("connection reset")}}

	req := httptest.NewRequest(http.MethodPost, "/api/chat/public/prompt",
		jsonBody(t, map[string]string{"message": "halo"}))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	want := "sebagian " + StreamErrorMarker
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestPromptCleanStreamHasNoMarker(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/public/prompt",
		jsonBody(t, map[string]string{"message": "halo"}))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); strings.Contains(got, StreamErrorMarker) {
		t.Errorf("clean stream carries the error marker: %q", got)
	}
}

func TestPromptRequiresIdentity(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/prompt",
		jsonBody(t, map[string]string{"message": "halo"}))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestPromptUnknownConversation(t *testing.T) {
	ts := newTestServer(t)
	ts.responder.err = conversation.ErrNotFound

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/chat/prompt",
		jsonBody(t, map[string]string{"message": "halo", "conversation_uid": "forged"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPublicPromptIsAnonymous(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]any{
		"message": "Toilet kampus ada di mana?",
		"history": []map[string]string{{"U": "halo", "A": "Halo!"}},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/chat/public/prompt", jsonBody(t, body))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.responder.req.Identity != nil {
		t.Error("public prompt forwarded an identity")
	}
	if len(ts.responder.req.History) != 1 || ts.responder.req.History[0].User != "halo" {
		t.Errorf("payload history not forwarded: %+v", ts.responder.req.History)
	}
}

func TestStoreExchange(t *testing.T) {
	ts := newTestServer(t)

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/chat/store",
		jsonBody(t, map[string]string{
			"conversation_uid":  "conv-1",
			"user_message":      "kapan pendaftaran?",
			"assistant_message": "Bulan Juli.",
		})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.turns.uid != "conv-1" || ts.turns.turn.User != "kapan pendaftaran?" {
		t.Errorf("turn not stored: uid %q turn %+v", ts.turns.uid, ts.turns.turn)
	}
}

func TestCreateConversationUsesGeneratedTitle(t *testing.T) {
	ts := newTestServer(t)

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/conversations",
		jsonBody(t, map[string]string{"assistant_message": "Halo, ada yang bisa saya bantu?"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.convs.created.Name != "Judul Percakapan" {
		t.Errorf("name = %q", ts.convs.created.Name)
	}
}

func TestCreateConversationFallsBackOnTitleFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.titler.err = errors.New("backend down")

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/conversations",
		jsonBody(t, map[string]string{"assistant_message": "Halo!"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.convs.created.Name != defaultConversationName {
		t.Errorf("name = %q, want default", ts.convs.created.Name)
	}
}

func TestTranscriptUnknownConversation(t *testing.T) {
	ts := newTestServer(t)
	ts.convs.err = conversation.ErrNotFound

	req := asStudent(httptest.NewRequest(http.MethodGet, "/api/conversations/forged/messages", nil))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func multipartUpload(t *testing.T, topic, visibility string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "faq.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("Jam buka perpustakaan 08.00-16.00."))
	mw.WriteField("topic", topic)
	mw.WriteField("visibility", visibility)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAcceptsAndEnqueues(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "resource_service", "public")
	req := asStaff(httptest.NewRequest(http.MethodPost, "/api/documents", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.docs.saved == nil || ts.docs.saved.Topic != "resource_service" {
		t.Errorf("document not saved: %+v", ts.docs.saved)
	}
	if len(ts.queue.uids) != 1 || ts.queue.uids[0] != "doc-1" {
		t.Errorf("document not enqueued: %v", ts.queue.uids)
	}
}

func TestUploadRequiresStaff(t *testing.T) {
	ts := newTestServer(t)

	body, contentType := multipartUpload(t, "support", "restricted")
	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/documents", body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestUploadRejectsUnknownTopic(t *testing.T) {
	ts := newTestServer(t)

	for _, topic := range []string{"gossip", "other", ""} {
		body, contentType := multipartUpload(t, topic, "public")
		req := asStaff(httptest.NewRequest(http.MethodPost, "/api/documents", body))
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		ts.handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("topic %q: status = %d, want 400", topic, rec.Code)
		}
	}
}

func TestRetryConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.docs.retryErr = document.ErrNotRetryable

	req := asStaff(httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/retry", nil))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestEscalateQuestion(t *testing.T) {
	ts := newTestServer(t)

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/questions",
		jsonBody(t, map[string]string{
			"prompt":     "Kapan wisuda periode ini?",
			"bot_answer": "Saya tidak menemukan informasinya.",
		})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.questions.created == nil || ts.questions.created.Prompt != "Kapan wisuda periode ini?" {
		t.Errorf("question not recorded: %+v", ts.questions.created)
	}
}

func TestPublicEscalationRequiresEmail(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/questions/public",
		jsonBody(t, map[string]string{"prompt": "Apakah ada beasiswa?"}))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("without email: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/questions/public",
		jsonBody(t, map[string]string{
			"prompt":           "Apakah ada beasiswa?",
			"questioner_email": "calon@example.com",
		}))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("with email: status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.questions.created.QuestionerEmail != "calon@example.com" {
		t.Errorf("email not recorded: %+v", ts.questions.created)
	}
}

func TestAnswerQuestionEmbedsIntoTopic(t *testing.T) {
	ts := newTestServer(t)

	req := asStaff(httptest.NewRequest(http.MethodPost, "/api/questions/q-1/answer",
		jsonBody(t, map[string]string{
			"answer":     "Wisuda bulan Oktober.",
			"topic":      "academic_administration",
			"visibility": "public",
		})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ts.questions.answered != "q-1" {
		t.Errorf("answered uid = %q", ts.questions.answered)
	}
	ans := ts.questions.answer
	if ans.Topic != "academic_administration" || ans.Visibility != knowledge.VisibilityPublic {
		t.Errorf("answer routed to %s/%s", ans.Topic, ans.Visibility)
	}
	if ans.AnsweredBy != "staff-1" {
		t.Errorf("answered_by = %q", ans.AnsweredBy)
	}
}

func TestAnswerQuestionRequiresStaff(t *testing.T) {
	ts := newTestServer(t)

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/questions/q-1/answer",
		jsonBody(t, map[string]string{"answer": "x", "topic": "support"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAnswerQuestionRejectsFallbackTopic(t *testing.T) {
	ts := newTestServer(t)

	req := asStaff(httptest.NewRequest(http.MethodPost, "/api/questions/q-1/answer",
		jsonBody(t, map[string]string{"answer": "x", "topic": "other"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnswerQuestionConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.questions.answerErr = question.ErrAlreadyAnswered

	req := asStaff(httptest.NewRequest(http.MethodPost, "/api/questions/q-1/answer",
		jsonBody(t, map[string]string{"answer": "x", "topic": "support"})))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestListQuestionsRequiresStaff(t *testing.T) {
	ts := newTestServer(t)

	req := asStudent(httptest.NewRequest(http.MethodGet, "/api/questions", nil))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student: status = %d, want 403", rec.Code)
	}

	req = asStaff(httptest.NewRequest(http.MethodGet, "/api/questions", nil))
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("staff: status = %d, want 200", rec.Code)
	}
}

func TestHandlersDefaultNilLogger(t *testing.T) {
	// Every logging path must survive a nil logger; the error chunk below
	// hits one.
	h := NewChatHandler(&mockResponder{chunks: []chat.Chunk{{Err: errors.New("backend down")}}}, &mockTurns{}, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	NewConversationHandler(&mockConversations{}, &mockTitler{err: errors.New("backend down")}, nil).RegisterRoutes(mux)

	req := asStudent(httptest.NewRequest(http.MethodPost, "/api/chat/prompt",
		jsonBody(t, map[string]string{"message": "halo"})))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("chat: status = %d", rec.Code)
	}

	req = asStudent(httptest.NewRequest(http.MethodPost, "/api/conversations",
		jsonBody(t, map[string]string{"assistant_message": "Halo!"})))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("conversations: status = %d", rec.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		rateLimitMiddleware(newRateLimiter(0.0001, 1), testLogger()),
	)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.1:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", rec.Code)
	}

	// A different IP has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other ip: status = %d, want 200", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}),
		recoveryMiddleware(testLogger()),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
