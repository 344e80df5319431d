package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/floodnet-dev/flood-response-api/api/handlers"
	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/models"
)

// Minimal fake implementing databases.UserDatabase
type fakeUserDB struct {
	findOne func(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error)
}

func (f fakeUserDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
	return f.findOne(ctx, filter, opts...)
}

func (f fakeUserDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	return nil, nil
}

func (f fakeUserDB) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	return nil, nil
}

func (f fakeUserDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.User, error) {
	return nil, nil
}

func TestDispatcherLogin_Success(t *testing.T) {
	password := "strong-pass"
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	user := &models.User{
		ID: primitive.NewObjectID(),
		Details: models.UserDetails{
			Name:     "On-call Dispatcher",
			Email:    "dispatch@example.com",
			Password: string(hash),
			Role:     "dispatcher",
			IsActive: true,
		},
	}

	h := handlers.DispatcherAuth{UDB: fakeUserDB{findOne: func(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
		return user, nil
	}}}

	old := os.Getenv("JWT_SECRET")
	os.Setenv("JWT_SECRET", "test-secret")
	t.Cleanup(func() { os.Setenv("JWT_SECRET", old) })

	body, _ := json.Marshal(map[string]string{"email": user.Details.Email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	http.HandlerFunc(h.DispatcherLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Token      string `json:"token"`
		Dispatcher struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"dispatcher"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, user.Details.Email, resp.Dispatcher.Email)
	assert.Equal(t, "dispatcher", resp.Dispatcher.Role)
}

func TestDispatcherLogin_WrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("the-real-password"), bcrypt.DefaultCost)
	user := &models.User{
		ID: primitive.NewObjectID(),
		Details: models.UserDetails{
			Email:    "dispatch@example.com",
			Password: string(hash),
			IsActive: true,
		},
	}

	h := handlers.DispatcherAuth{UDB: fakeUserDB{findOne: func(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
		return user, nil
	}}}

	old := os.Getenv("JWT_SECRET")
	os.Setenv("JWT_SECRET", "test-secret")
	t.Cleanup(func() { os.Setenv("JWT_SECRET", old) })

	body, _ := json.Marshal(map[string]string{"email": user.Details.Email, "password": "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	http.HandlerFunc(h.DispatcherLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid credentials")
}

func TestDispatcherLogin_UnknownUser(t *testing.T) {
	h := handlers.DispatcherAuth{UDB: fakeUserDB{findOne: func(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
		return nil, errors.New("mongo: no documents in result")
	}}}

	body, _ := json.Marshal(map[string]string{"email": "nobody@example.com", "password": "whatever"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	http.HandlerFunc(h.DispatcherLoginHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
