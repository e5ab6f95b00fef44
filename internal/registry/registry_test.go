package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/routeforge/core/internal/database"
	"github.com/routeforge/core/internal/models"
	"github.com/routeforge/core/internal/sandbox"
	"github.com/routeforge/core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	if migrate {
		require.NoError(t, database.Migrate(db))
	}
	return db
}

func testRegistry(t *testing.T) (*Registry, *gorm.DB) {
	t.Helper()
	db := openTestDB(t, true)
	host := sandbox.NewHost(2*time.Second, zap.NewNop())
	return New(store.New(db), host, zap.NewNop()), db
}

const echoJS = "function endpoint_function(p){return p;}"
const oneJS = "function endpoint_function(p){return {v: 1};}"
const twoJS = "function endpoint_function(p){return {v: 2};}"

func TestHydrateFromStore(t *testing.T) {
	reg, db := testRegistry(t)

	require.NoError(t, db.Create(&models.EndpointModel{
		Path: "/api/p/a", Code: echoJS, Language: models.LanguageJavaScript,
		HTTPMethod: "GET", ProjectID: "pr", UserID: "u",
	}).Error)
	require.NoError(t, db.Create(&models.PageModel{
		Path: "/p/home", HTMLContent: "<h1>hi</h1>", ProjectID: "pr", UserID: "u",
	}).Error)

	require.NoError(t, reg.EnsureInitialized(context.Background()))

	assert.ElementsMatch(t, []string{"/api/p/a", "/p/home"}, reg.Paths())

	info, ok := reg.Lookup("/api/p/a")
	require.True(t, ok)
	assert.Equal(t, KindEndpoint, info.Kind)
	require.NotNil(t, info.Handler)

	page, ok := reg.Lookup("/p/home")
	require.True(t, ok)
	assert.Equal(t, KindPage, page.Kind)
	assert.Equal(t, "<h1>hi</h1>", page.HTMLContent)
}

func TestEnsureInitializedConcurrent(t *testing.T) {
	reg, db := testRegistry(t)
	require.NoError(t, db.Create(&models.EndpointModel{
		Path: "/api/p/a", Code: echoJS, Language: models.LanguageJavaScript,
		HTTPMethod: "GET", ProjectID: "pr", UserID: "u",
	}).Error)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = reg.EnsureInitialized(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, []string{"/api/p/a"}, reg.Paths())
}

func TestEnsureInitializedRetriesAfterFailure(t *testing.T) {
	db := openTestDB(t, false) // tables missing, first hydration fails
	host := sandbox.NewHost(2*time.Second, zap.NewNop())
	reg := New(store.New(db), host, zap.NewNop())

	require.Error(t, reg.EnsureInitialized(context.Background()))

	require.NoError(t, database.Migrate(db))
	require.NoError(t, reg.EnsureInitialized(context.Background()))
}

func TestRegisterReplacesAndReleases(t *testing.T) {
	reg, _ := testRegistry(t)

	reg.RegisterEndpoint("/api/p/a", nil, oneJS, "GET", models.LanguageJavaScript)
	first, ok := reg.Lookup("/api/p/a")
	require.True(t, ok)

	reg.RegisterEndpoint("/api/p/a", nil, twoJS, "GET", models.LanguageJavaScript)
	second, ok := reg.Lookup("/api/p/a")
	require.True(t, ok)
	require.NotSame(t, first, second)

	result, err := second.Handler.Invoke(context.Background(), nil)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	assert.EqualValues(t, 2, m["v"])

	// The displaced handler was released.
	_, err = first.Handler.Invoke(context.Background(), nil)
	var execErr *sandbox.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "released")
}

func TestRegisterEndpointCompileFailureInstallsStub(t *testing.T) {
	reg, _ := testRegistry(t)

	reg.RegisterEndpoint("/api/p/bad", nil, "garbage syntax!", "GET", models.LanguageJavaScript)
	info, ok := reg.Lookup("/api/p/bad")
	require.True(t, ok)
	require.NotNil(t, info.Handler)

	_, isStub := info.Handler.Stub()
	assert.True(t, isStub)

	result, err := info.Handler.Invoke(context.Background(), nil)
	require.NoError(t, err)
	m := result.(map[string]interface{})
	assert.Equal(t, "JavaScript compilation error", m["error"])
}

func TestUnregisterReleasesHandler(t *testing.T) {
	reg, _ := testRegistry(t)

	reg.RegisterEndpoint("/api/p/a", nil, echoJS, "GET", models.LanguageJavaScript)
	info, ok := reg.Lookup("/api/p/a")
	require.True(t, ok)

	reg.Unregister("/api/p/a")
	_, ok = reg.Lookup("/api/p/a")
	assert.False(t, ok)

	_, err := info.Handler.Invoke(context.Background(), nil)
	var execErr *sandbox.ExecError
	require.ErrorAs(t, err, &execErr)
}

func TestRefreshEndpointFollowsStore(t *testing.T) {
	reg, db := testRegistry(t)

	ep := &models.EndpointModel{
		Path: "/api/p/a", Code: oneJS, Language: models.LanguageJavaScript,
		HTTPMethod: "GET", ProjectID: "pr", UserID: "u",
	}
	require.NoError(t, db.Create(ep).Error)
	require.NoError(t, reg.RefreshEndpoint("/api/p/a"))

	info, ok := reg.Lookup("/api/p/a")
	require.True(t, ok)
	result, err := info.Handler.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.(map[string]interface{})["v"])

	// Store row changes; refresh picks up the new code.
	require.NoError(t, db.Model(ep).Update("code", twoJS).Error)
	require.NoError(t, reg.RefreshEndpoint("/api/p/a"))

	info, ok = reg.Lookup("/api/p/a")
	require.True(t, ok)
	result, err = info.Handler.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.(map[string]interface{})["v"])

	// Store row disappears; refresh removes the entry.
	require.NoError(t, db.Delete(ep).Error)
	require.NoError(t, reg.RefreshEndpoint("/api/p/a"))
	_, ok = reg.Lookup("/api/p/a")
	assert.False(t, ok)
}

func TestRefreshIdempotent(t *testing.T) {
	reg, db := testRegistry(t)

	require.NoError(t, db.Create(&models.EndpointModel{
		Path: "/api/p/a", Parameters: models.ParamList{"x"}, Code: echoJS,
		Language: models.LanguageJavaScript, HTTPMethod: "GET",
		ProjectID: "pr", UserID: "u",
	}).Error)

	require.NoError(t, reg.RefreshEndpoint("/api/p/a"))
	first, _ := reg.Lookup("/api/p/a")
	require.NoError(t, reg.RefreshEndpoint("/api/p/a"))
	second, _ := reg.Lookup("/api/p/a")

	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, first.Parameters, second.Parameters)
	assert.Equal(t, first.HTTPMethod, second.HTTPMethod)
	assert.Equal(t, first.Language, second.Language)
}

func TestRefreshPage(t *testing.T) {
	reg, db := testRegistry(t)

	page := &models.PageModel{
		Path: "/p/home", HTMLContent: "<h1>v1</h1>", ProjectID: "pr", UserID: "u",
	}
	require.NoError(t, db.Create(page).Error)
	require.NoError(t, reg.RefreshPage("/p/home"))

	info, ok := reg.Lookup("/p/home")
	require.True(t, ok)
	assert.Equal(t, "<h1>v1</h1>", info.HTMLContent)

	require.NoError(t, db.Model(page).Update("html_content", "<h1>v2</h1>").Error)
	require.NoError(t, reg.RefreshPage("/p/home"))
	info, _ = reg.Lookup("/p/home")
	assert.Equal(t, "<h1>v2</h1>", info.HTMLContent)

	require.NoError(t, db.Delete(page).Error)
	require.NoError(t, reg.RefreshPage("/p/home"))
	_, ok = reg.Lookup("/p/home")
	assert.False(t, ok)
}

func TestConcurrentLookupDuringWrites(t *testing.T) {
	reg, _ := testRegistry(t)
	reg.RegisterEndpoint("/api/p/a", nil, oneJS, "GET", models.LanguageJavaScript)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if info, ok := reg.Lookup("/api/p/a"); ok {
					// Observed RouteInfo is always fully constructed.
					assert.NotNil(t, info.Handler)
					assert.Equal(t, "/api/p/a", info.Path)
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		code := oneJS
		if i%2 == 1 {
			code = twoJS
		}
		reg.RegisterEndpoint("/api/p/a", nil, code, "GET", models.LanguageJavaScript)
	}
	close(stop)
	wg.Wait()
}
