package oauthlogin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestRegistryOnlyConfiguredProviders(t *testing.T) {
	r := NewRegistry(config.OAuthConfig{
		RedirectBaseURL: "https://api.example.com/",
		GitHub:          config.OAuthProviderConfig{ClientID: "gh", ClientSecret: "s"},
	})
	_, err := r.Get(Google)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	p, err := r.Get(GitHub)
	require.NoError(t, err)
	u, err := url.Parse(p.AuthCodeURL("state-1"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "https://api.example.com/auth/oauth/github/callback", u.Query().Get("redirect_uri"))
}

func fakeGitHub(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"gho_1","token_type":"bearer"}`))
		case "/user":
			assert.Equal(t, "Bearer gho_1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":99,"login":"ann","name":"","avatar_url":"https://avatars/ann"}`))
		case "/user/emails":
			_, _ = w.Write([]byte(`[{"email":"old@example.com","primary":false,"verified":true},{"email":"Ann@Example.com","primary":true,"verified":true}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestGitHubExchange(t *testing.T) {
	srv := fakeGitHub(t)
	defer srv.Close()

	p := &Provider{
		Name: GitHub,
		config: &oauth2.Config{
			ClientID:     "gh",
			ClientSecret: "s",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/authorize", TokenURL: srv.URL + "/token"},
		},
		apiBase: srv.URL,
		profile: githubProfile,
	}

	token, profile, err := p.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "gho_1", token.AccessToken)
	assert.Equal(t, "99", profile.ProviderAccountID)
	assert.Equal(t, "ann@example.com", profile.Email)
	assert.Equal(t, "ann", profile.Name)
	assert.Equal(t, GitHub, profile.Provider)
}

func TestLinkAccount(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	existing := model.User{Email: "ann@example.com", Name: "Ann", Password: "hash"}
	require.NoError(t, db.Create(&existing).Error)

	profile := &Profile{Provider: GitHub, ProviderAccountID: "99", Email: "ann@example.com", Name: "ann"}
	user, err := LinkAccount(ctx, db, profile, &oauth2.Token{AccessToken: "a1"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID, "links to the account with the same email")

	user, err = LinkAccount(ctx, db, profile, &oauth2.Token{AccessToken: "a2", RefreshToken: "r2"})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)

	var accounts []model.OAuthAccount
	require.NoError(t, db.Find(&accounts).Error)
	require.Len(t, accounts, 1)
	assert.Equal(t, "a2", accounts[0].AccessToken)
	assert.Equal(t, "r2", accounts[0].RefreshToken)

	newUser, err := LinkAccount(ctx, db, &Profile{Provider: Google, ProviderAccountID: "g-1", Email: "bob@example.com", Name: "Bob"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, existing.ID, newUser.ID)
	assert.False(t, newUser.HasPassword())
}
