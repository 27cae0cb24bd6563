package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Moby Dick":                  "moby-dick",
		"call_me_ishmael":            "call-me-ishmael",
		"Chapter 1: Loomings!":       "chapter-1-loomings",
		"The Whiteness of the Whale": "the-whiteness-of-the-whale",
		"Pequod (1851)":              "pequod-1851",
		"already-slugged":            "already-slugged",
		"two  spaces":                "two--spaces",
		"Père Goriot":                "pre-goriot",
		"?!":                         "",
		"":                           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestRecordIDString(t *testing.T) {
	id, err := RecordIDString(surrealmodels.RecordID{Table: "lab_job", ID: "3c7e"})
	require.NoError(t, err)
	assert.Equal(t, "3c7e", id)

	_, err = RecordIDString(surrealmodels.RecordID{Table: "lab_job", ID: 42})
	assert.ErrorContains(t, err, "unexpected ID type: int")
}
