package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("LMNP_TEST_DIR", "/srv/lmnp")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/lmnp.db", filepath.Join(home, "lmnp.db")},
		{"$LMNP_TEST_DIR/lmnp.db", "/srv/lmnp/lmnp.db"},
		{"/abs/path", "/abs/path"},
		{"~user/x", "~user/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestDatabasePath(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	assert.Equal(t, "/data/lmnp/lmnp.db", DatabasePath(""))
	assert.Equal(t, "/tmp/x.db", DatabasePath("/tmp/x.db"))
}

func TestLoadSheetsConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/env/key.json")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_NAME", "")

	viper.Set("sheets.spreadsheet_name", "Studio Lyon")
	viper.Set("sheets.formatting", false)

	c, err := LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "/env/key.json", c.ServiceAccountPath)
	assert.Equal(t, "Studio Lyon", c.SpreadsheetName)
	assert.Equal(t, "Europe/Paris", c.TimeZone)
	assert.False(t, c.EnableFormatting)

	viper.Set("sheets.client_id", "id")
	viper.Set("sheets.client_secret", "secret")
	viper.Set("sheets.refresh_token", "token")
	_, err = LoadSheetsConfig()
	assert.Error(t, err, "oauth and service account together")
}

func TestLoadSheetsConfig_TokenFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	for _, key := range []string{"CLIENT_ID", "CLIENT_SECRET", "REFRESH_TOKEN", "SERVICE_ACCOUNT_PATH", "SPREADSHEET_ID", "SPREADSHEET_NAME"} {
		t.Setenv("GOOGLE_SHEETS_"+key, "")
	}

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(tokenFile, []byte(`{"access_token":"a","refresh_token":"saved"}`), 0600))

	viper.Set("sheets.client_id", "id")
	viper.Set("sheets.client_secret", "secret")
	viper.Set("sheets.token_file", tokenFile)

	c, err := LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "saved", c.RefreshToken)
}
