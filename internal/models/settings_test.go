package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SettingKey
		wantErr bool
	}{
		{name: "dotted key", input: "reddit.home_feed", want: Key("reddit", "home_feed")},
		{name: "rule id with dot", input: "youtube.sidebar.v2", want: Key("youtube", "sidebar.v2")},
		{name: "legacy flat key", input: "hideHomeFeed", wantErr: true},
		{name: "underscore separator", input: "reddit_home_feed", wantErr: true},
		{name: "empty rule", input: "reddit.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSettingKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestSettingsEnabledFallsBackToDefault(t *testing.T) {
	s := Settings{Key("reddit", "sidebar"): false}

	assert.False(t, s.Enabled("reddit", BlockRule{ID: "sidebar", DefaultEnabled: true}))
	assert.True(t, s.Enabled("reddit", BlockRule{ID: "new_rule", DefaultEnabled: true}))
	assert.False(t, s.Enabled("reddit", BlockRule{ID: "other", DefaultEnabled: false}))

	var empty Settings
	assert.True(t, empty.Enabled("youtube", BlockRule{ID: "home_feed", DefaultEnabled: true}))
}

func TestSettingsJSONUsesFlatKeys(t *testing.T) {
	s := Settings{Key("a", "x"): true, Key("b", "y"): false}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a.x": true, "b.y": false}`, string(data))

	var back Settings
	require.NoError(t, json.Unmarshal([]byte(`{"a.x": true, "hideHomeFeed": true}`), &back))
	assert.Equal(t, Settings{Key("a", "x"): true}, back)
}

func TestRemoteSourceConfigURL(t *testing.T) {
	assert.Equal(t, ProdConfigURL, RemoteSource{}.ConfigURL())
	assert.Equal(t, DevConfigURL, RemoteSource{UseDev: true}.ConfigURL())
	assert.Equal(t, "http://x/c.json", RemoteSource{UseDev: true, DevURL: "http://x/c.json"}.ConfigURL())
	assert.Equal(t, "https://y/c.json", RemoteSource{URL: "https://y/c.json", DevURL: "http://x"}.ConfigURL())
}
