package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bs3vcenk/Netrix-sub000/internal/config"
	"github.com/bs3vcenk/Netrix-sub000/internal/model"
	"github.com/bs3vcenk/Netrix-sub000/internal/settings"
	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validToken = "abc123"

type fakeService struct {
	loginErr  error
	aggErr    error
	agg       *model.ClassAggregate
	prefs     settings.Preferences
	reports   []model.StatsReport
	refreshed []int
	disabled  []string
}

func (f *fakeService) check(token string) error {
	if token != validToken {
		return errors.ErrTokenNotFound
	}
	return nil
}

func (f *fakeService) Login(_ context.Context, username, _ string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return validToken, nil
}

func (f *fakeService) Logout(_ context.Context, token string) error { return f.check(token) }

func (f *fakeService) Classes(_ context.Context, token string) ([]model.Class, error) {
	if err := f.check(token); err != nil {
		return nil, err
	}
	return []model.Class{{ID: 0, Label: "4.b"}}, nil
}

func (f *fakeService) Aggregate(_ context.Context, token string, classIndex int) (*model.ClassAggregate, error) {
	if err := f.check(token); err != nil {
		return nil, err
	}
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	if classIndex != 0 {
		return nil, fmt.Errorf("%w: %d", errors.ErrInvalidClassIndex, classIndex)
	}
	return f.agg, nil
}

func (f *fakeService) EnqueueRefresh(_ context.Context, token string, classIndex int) error {
	if err := f.check(token); err != nil {
		return err
	}
	f.refreshed = append(f.refreshed, classIndex)
	return nil
}

func (f *fakeService) Export(_ context.Context, token string, _ int) ([]byte, error) {
	if err := f.check(token); err != nil {
		return nil, err
	}
	return []byte("PK"), nil
}

func (f *fakeService) Settings(_ context.Context, token string) (settings.Preferences, error) {
	return f.prefs, f.check(token)
}

func (f *fakeService) UpdateSettings(_ context.Context, token string, u model.SettingsUpdate) (settings.Preferences, error) {
	if err := f.check(token); err != nil {
		return settings.Preferences{}, err
	}
	p, err := settings.Apply(f.prefs, u)
	if err != nil {
		return f.prefs, err
	}
	f.prefs = p
	return p, nil
}

func (f *fakeService) Reminders(_ context.Context, token string) ([]model.ScheduledReminder, error) {
	if err := f.check(token); err != nil {
		return nil, err
	}
	return []model.ScheduledReminder{{ID: "r1", Title: "Test"}}, nil
}

func (f *fakeService) ScheduleReminders(_ context.Context, token string) (int, error) {
	return 2, f.check(token)
}

func (f *fakeService) DisableReminder(_ context.Context, token, id string) error {
	f.disabled = append(f.disabled, id)
	return f.check(token)
}

func (f *fakeService) DisableAllReminders(_ context.Context, token string) error {
	f.disabled = append(f.disabled, "*")
	return f.check(token)
}

func (f *fakeService) RecordStats(_ context.Context, report model.StatsReport) error {
	if err := f.check(report.Token); err != nil {
		return err
	}
	f.reports = append(f.reports, report)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Parse([]byte("app:\n  version: 2.0.0\n"))
	require.NoError(t, err)

	avg := 4.5
	svc := &fakeService{
		prefs: settings.Defaults(),
		agg: &model.ClassAggregate{
			Class: model.Class{ID: 0, Label: "4.b"},
			Subjects: []model.SubjectData{
				{Subject: model.Subject{ID: 0, Name: "Matematika"}, Average: &avg, Grades: []model.Grade{{Value: 5}}},
			},
			Exams: []model.Exam{
				{Subject: "Matematika", Title: "Derivacije", Current: true},
				{Subject: "Fizika", Title: "Optika"},
			},
			AbsenceOverview: &model.AbsenceOverview{Justified: 2, Sum: 2},
			Complete:        true,
		},
	}
	return NewRouter(NewHandler(svc, cfg)), svc
}

func do(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "netrix", body["service"])
	assert.Equal(t, "2.0.0", body["version"])
}

func TestLogin(t *testing.T) {
	router, svc := newTestRouter(t)

	w := do(router, http.MethodPost, "/api/login", model.LoginRequest{Username: "ivan", Password: "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, validToken, decode(t, w)["token"])

	w = do(router, http.MethodPost, "/api/login", gin.H{"username": "ivan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.loginErr = &errors.AuthError{Reason: "wrong password"}
	w = do(router, http.MethodPost, "/api/login", model.LoginRequest{Username: "ivan", Password: "bad"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.CodeInvalidCredentials, decode(t, w)["code"])
}

func TestUnknownTokenIsUnauthorized(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodGet, "/api/user/nope/classes", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.CodeTokenNonexistent, decode(t, w)["code"])
}

func TestClassEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	base := "/api/user/" + validToken

	w := do(router, http.MethodGet, base+"/classes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["classes"], 1)

	w = do(router, http.MethodGet, base+"/classes/0/subjects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	subjects := decode(t, w)
	assert.Len(t, subjects["subjects"], 1)
	assert.Equal(t, true, subjects["complete"])
	assert.Equal(t, false, subjects["partial"])

	w = do(router, http.MethodGet, base+"/classes/0/subjects/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	subject := decode(t, w)
	assert.Equal(t, "Matematika", subject["subject"])
	assert.Equal(t, 4.5, subject["average"])

	w = do(router, http.MethodGet, base+"/classes/0/subjects/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, base+"/classes/3/subjects", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, base+"/classes/x/subjects", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, base+"/classes/0/tests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["tests"], 2)

	w = do(router, http.MethodGet, base+"/classes/0/tests?current=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["tests"], 1)

	w = do(router, http.MethodGet, base+"/classes/0/absences", nil)
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode(t, w)["overview"].(map[string]interface{})
	assert.Equal(t, float64(2), overview["justified"])

	w = do(router, http.MethodGet, base+"/classes/0/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "netrix-class-0.xlsx")
}

func TestPortalFailuresMapToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"maintenance", &errors.MaintenanceError{URL: "https://ocjene.skole.hr"}, http.StatusServiceUnavailable, errors.CodeMaintenance},
		{"network", &errors.NetworkError{URL: "https://ocjene.skole.hr", Timeout: true}, http.StatusBadGateway, errors.CodeNetwork},
		{"parse", &errors.ParseError{Kind: "classes", Field: "list"}, http.StatusBadGateway, errors.CodeParseFailed},
		{"database", errors.NewDatabaseError(fmt.Errorf("dial tcp")), http.StatusInternalServerError, errors.CodeDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, svc := newTestRouter(t)
			svc.aggErr = tt.err

			w := do(router, http.MethodGet, "/api/user/"+validToken+"/classes/0/tests", nil)
			require.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestSettingsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	base := "/api/user/" + validToken

	w := do(router, http.MethodGet, base+"/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["lead_days"])

	w = do(router, http.MethodPut, base+"/settings", gin.H{"lead_days": 7, "theme": "dark"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(7), body["lead_days"])
	assert.Equal(t, "dark", body["theme"])

	w = do(router, http.MethodPut, base+"/settings", gin.H{"lead_days": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPut, base+"/settings", gin.H{"language": "de"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	router, svc := newTestRouter(t)
	base := "/api/user/" + validToken

	w := do(router, http.MethodGet, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["notifications"], 1)

	w = do(router, http.MethodPost, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["scheduled"])

	w = do(router, http.MethodDelete, base+"/notifications/r1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(router, http.MethodDelete, base+"/notifications", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"r1", "*"}, svc.disabled)
}

func TestRefreshLogoutAndStats(t *testing.T) {
	router, svc := newTestRouter(t)
	base := "/api/user/" + validToken

	w := do(router, http.MethodPost, base+"/refresh?class_id=1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []int{1}, svc.refreshed)

	w = do(router, http.MethodPost, "/api/stats", model.StatsReport{Token: validToken, Platform: "android"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.reports, 1)
	assert.Equal(t, "android", svc.reports[0].Platform)

	w = do(router, http.MethodPost, "/api/stats", gin.H{"platform": "ios"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, base+"/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, http.MethodOptions, "/api/login", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
