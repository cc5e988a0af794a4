package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fotochallenge-api/internal/blob"
	"fotochallenge-api/internal/config"
	"fotochallenge-api/internal/container"
	"fotochallenge-api/internal/domain"
	"fotochallenge-api/internal/middleware"
	"fotochallenge-api/internal/persistence"
	"fotochallenge-api/internal/service"
	"fotochallenge-api/internal/service/critique"
	"fotochallenge-api/internal/store"
	"fotochallenge-api/pkg/localcache"
	"fotochallenge-api/pkg/logger"
)

type apiFixture struct {
	router *chi.Mux
	store  *store.Store
	blobs  *blob.MemoryStore
	now    time.Time
}

func setupAPI(t *testing.T) *apiFixture {
	log, err := logger.New("error", "test")
	require.NoError(t, err)

	cache, err := localcache.Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	st := store.New()
	blobs := blob.NewMemoryStore("http://localhost:8080")

	f := &apiFixture{
		store: st,
		blobs: blobs,
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	contest := service.NewContestService(
		st,
		persistence.NewGateway(persistence.NewLocalBackend(cache), nil, log),
		blobs,
		critique.NewService("", "gemini-2.0-flash", log),
		func() time.Time { return f.now },
		log,
	)

	challengeHandler := NewChallengeHandler(contest, log)
	photoHandler := NewPhotoHandler(contest, log)
	userHandler := NewUserHandler(contest, log)
	storageHandler := NewStorageHandler(contest, log)
	blobHandler := NewBlobHandler(blobs, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID(log))
	r.Use(middleware.Identity())
	r.Route("/api", func(r chi.Router) {
		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", challengeHandler.List)
			r.Post("/", challengeHandler.Create)
			r.Get("/{challengeID}", challengeHandler.Get)
			r.Get("/{challengeID}/photos", challengeHandler.Photos)
			r.Get("/{challengeID}/leaderboard", challengeHandler.Leaderboard)
			r.Post("/{challengeID}/photos", photoHandler.Upload)
		})
		r.Route("/photos", func(r chi.Router) {
			r.Get("/{photoID}", photoHandler.Get)
			r.Post("/{photoID}/rate", photoHandler.Rate)
		})
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", userHandler.Login)
			r.Post("/register", userHandler.Register)
		})
		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Post("/{userID}/approve", userHandler.Approve)
			r.Put("/{userID}/role", userHandler.ChangeRole)
		})
		r.Post("/storage/clear", storageHandler.Clear)
		r.Get("/blob", blobHandler.Get)
	})
	f.router = r
	return f
}

func (f *apiFixture) addUser(role domain.UserRole, approved bool) *domain.User {
	u := &domain.User{ID: store.NewID(), Username: "user_" + string(role), Role: role, IsApproved: approved}
	f.store.AddUser(u)
	return u
}

func (f *apiFixture) addChallenge(maxPhotos int) *domain.Challenge {
	c := &domain.Challenge{
		ID:               store.NewID(),
		Title:            "Signs of Time",
		UploadDeadline:   f.now.Add(24 * time.Hour).UnixMilli(),
		VotingDeadline:   f.now.Add(48 * time.Hour).UnixMilli(),
		MaxPhotosPerUser: maxPhotos,
	}
	f.store.AddChallenge(c)
	return c
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListChallenges(t *testing.T) {
	f := setupAPI(t)
	f.addChallenge(3)

	rec := f.do(t, http.MethodGet, "/api/challenges", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	challenges := body["challenges"].([]interface{})
	require.Len(t, challenges, 1)

	first := challenges[0].(map[string]interface{})
	assert.Equal(t, "upload", first["phase"])
	assert.EqualValues(t, 0, first["photoCount"])
	assert.EqualValues(t, f.now.UnixMilli(), body["serverTime"])
}

func TestGetChallengeDetail(t *testing.T) {
	f := setupAPI(t)
	photographer := f.addUser(domain.RolePhotographer, true)
	c := f.addChallenge(3)

	rec := f.do(t, http.MethodGet, "/api/challenges/"+c.ID, photographer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["canUpload"])
	assert.EqualValues(t, 0, body["userPhotoCount"])
}

func TestGetChallengeNotFound(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/challenges/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeBody(t, rec)
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "not_found", errObj["type"])
	assert.NotEmpty(t, errObj["request_id"])
}

func TestCreateChallengeEndpoint(t *testing.T) {
	f := setupAPI(t)
	admin := f.addUser(domain.RoleAdmin, true)

	input := map[string]interface{}{
		"title":            "Urban Shadows",
		"uploadDays":       1,
		"votingDays":       1,
		"maxPhotosPerUser": 3,
	}

	rec := f.do(t, http.MethodPost, "/api/challenges", admin.ID, input)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Urban Shadows", body["title"])
	assert.Equal(t, "upload", body["phase"])

	t.Run("guest is rejected", func(t *testing.T) {
		guest := f.addUser(domain.RoleGuest, true)
		rec := f.do(t, http.MethodPost, "/api/challenges", guest.ID, input)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown actor is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/challenges", "ghost", input)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestUploadAndFetchPhoto(t *testing.T) {
	f := setupAPI(t)
	photographer := f.addUser(domain.RolePhotographer, true)
	c := f.addChallenge(3)

	imageData := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	rec := f.do(t, http.MethodPost, "/api/challenges/"+c.ID+"/photos", photographer.ID,
		map[string]interface{}{"title": "Rust", "imageData": imageData, "fileName": "rust.jpg"})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	photoID := body["id"].(string)
	photoURL := body["url"].(string)
	require.NotEmpty(t, photoID)

	rec = f.do(t, http.MethodGet, "/api/photos/"+photoID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The returned URL resolves through the blob endpoint.
	key := photoURL[strings.LastIndex(photoURL, "key=")+len("key="):]
	rec = f.do(t, http.MethodGet, "/api/blob?key="+key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("fake-jpeg"), rec.Body.Bytes())
}

func TestUploadWithoutActor(t *testing.T) {
	f := setupAPI(t)
	c := f.addChallenge(3)

	rec := f.do(t, http.MethodPost, "/api/challenges/"+c.ID+"/photos", "",
		map[string]interface{}{"title": "X"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRatePhotoEndpoint(t *testing.T) {
	f := setupAPI(t)
	photographer := f.addUser(domain.RolePhotographer, true)
	c := f.addChallenge(3)

	rec := f.do(t, http.MethodPost, "/api/challenges/"+c.ID+"/photos", photographer.ID,
		map[string]interface{}{"title": "X"})
	require.Equal(t, http.StatusCreated, rec.Code)
	photoID := decodeBody(t, rec)["id"].(string)

	f.now = f.now.Add(25 * time.Hour) // voting open

	rec = f.do(t, http.MethodPost, "/api/photos/"+photoID+"/rate", "voter-1",
		map[string]interface{}{"value": 4})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 4, body["average"])

	t.Run("duplicate vote conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/photos/"+photoID+"/rate", "voter-1",
			map[string]interface{}{"value": 2})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid rating", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/photos/"+photoID+"/rate", "voter-2",
			map[string]interface{}{"value": 9})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no session identity", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/photos/"+photoID+"/rate", "",
			map[string]interface{}{"value": 3})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGalleryVotedIDsAndSearch(t *testing.T) {
	f := setupAPI(t)
	photographer := f.addUser(domain.RolePhotographer, true)
	c := f.addChallenge(6)

	upload := func(title string) string {
		rec := f.do(t, http.MethodPost, "/api/challenges/"+c.ID+"/photos", photographer.ID,
			map[string]interface{}{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code)
		return decodeBody(t, rec)["id"].(string)
	}
	rustID := upload("Rust on Steel")
	upload("Morning Fog")

	f.now = f.now.Add(25 * time.Hour)
	rec := f.do(t, http.MethodPost, "/api/photos/"+rustID+"/rate", "voter-1",
		map[string]interface{}{"value": 5})
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("voted IDs are per session", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/challenges/"+c.ID+"/photos", "voter-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, []interface{}{rustID}, body["votedPhotoIds"])

		rec = f.do(t, http.MethodGet, "/api/challenges/"+c.ID+"/photos", "voter-2", nil)
		body = decodeBody(t, rec)
		assert.Empty(t, body["votedPhotoIds"])
	})

	t.Run("search filters by title", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/challenges/"+c.ID+"/photos?search=fog", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		photos := decodeBody(t, rec)["photos"].([]interface{})
		require.Len(t, photos, 1)
		assert.Equal(t, "Morning Fog", photos[0].(map[string]interface{})["title"])
	})

	t.Run("search filters by author", func(t *testing.T) {
		rec := f.do(t, http.MethodGet,
			fmt.Sprintf("/api/challenges/%s/photos?search=%s", c.ID, photographer.Username), "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		photos := decodeBody(t, rec)["photos"].([]interface{})
		assert.Len(t, photos, 2)
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	f := setupAPI(t)
	photographer := f.addUser(domain.RolePhotographer, true)
	c := f.addChallenge(6)

	upload := func(title string) string {
		rec := f.do(t, http.MethodPost, "/api/challenges/"+c.ID+"/photos", photographer.ID,
			map[string]interface{}{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code)
		return decodeBody(t, rec)["id"].(string)
	}
	weakID := upload("Weak")
	strongID := upload("Strong")

	f.now = f.now.Add(25 * time.Hour)
	for i, vote := range []struct {
		photoID string
		value   int
	}{
		{weakID, 2},
		{strongID, 5},
		{strongID, 4},
	} {
		rec := f.do(t, http.MethodPost, "/api/photos/"+vote.photoID+"/rate",
			fmt.Sprintf("voter-%d", i),
			map[string]interface{}{"value": vote.value})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/api/challenges/"+c.ID+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	entries := body["entries"].([]interface{})
	require.Len(t, entries, 2)

	first := entries[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["rank"])
	assert.EqualValues(t, 4.5, first["average"])

	leader := body["leader"].(map[string]interface{})
	leaderPhoto := leader["photo"].(map[string]interface{})
	assert.Equal(t, strongID, leaderPhoto["id"])
}

func TestAuthEndpoints(t *testing.T) {
	f := setupAPI(t)

	t.Run("login mints a mock user", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "",
			map[string]interface{}{"role": "EDITOR"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "EDITOR", body["role"])
	})

	t.Run("login with unknown role", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/login", "",
			map[string]interface{}{"role": "WIZARD"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("register photographer", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/auth/register", "",
			map[string]interface{}{"username": "marek"})
		require.Equal(t, http.StatusCreated, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "marek", body["username"])
		assert.Equal(t, false, body["isApproved"])
	})
}

func TestUserManagementEndpoints(t *testing.T) {
	f := setupAPI(t)
	admin := f.addUser(domain.RoleAdmin, true)
	editor := f.addUser(domain.RoleEditor, true)
	pending := f.addUser(domain.RolePhotographer, false)

	t.Run("admin lists users", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users", admin.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeBody(t, rec)["users"].([]interface{})
		assert.Len(t, users, 3)
	})

	t.Run("editor cannot list users", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users", editor.ID, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin approves", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/users/"+pending.ID+"/approve", admin.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["isApproved"])
	})

	t.Run("admin changes role", func(t *testing.T) {
		rec := f.do(t, http.MethodPut, "/api/users/"+pending.ID+"/role", admin.ID,
			map[string]interface{}{"role": "EDITOR"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "EDITOR", body["role"])
	})

	t.Run("missing actor header", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/users", "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestStorageClearEndpoint(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/storage/clear", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	t.Run("with remote flag", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/storage/clear", "",
			map[string]interface{}{"includeRemote": true})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHealthEndpointReportsRemoteSnapshots(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	log, err := logger.New("error", "test")
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               "8080",
		LogLevel:           "error",
		Environment:        "test",
		RedisURL:           "redis://" + mr.Addr(),
		DataDir:            t.TempDir(),
		LocalCacheMaxBytes: config.DefaultLocalCacheMaxBytes,
		GeminiModel:        "gemini-2.0-flash",
		PublicBaseURL:      "http://localhost:8080",
	}

	c, err := container.New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.RedisClient.Close()
		c.LocalCache.Close()
	})

	require.NoError(t, c.Gateway.Save(context.Background(), persistence.CollectionUsers,
		[]*domain.User{{ID: "u1"}}))
	c.Gateway.Flush()

	rec := httptest.NewRecorder()
	NewHealthHandler(c).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["remote_store"])
	assert.EqualValues(t, 1, body["remote_snapshots"])
}

func TestBlobEndpointErrors(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/blob", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/blob?key=ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
