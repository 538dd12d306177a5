// Copyright (C) 2020 Storj Labs, Inc.
// See LICENSE for copying information.

package prompt_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/repostore/private/prompt"
)

func TestConfirm(t *testing.T) {
	for _, tt := range []struct {
		input    string
		expected bool
		prompts  int
	}{
		{input: "y\n", expected: true, prompts: 1},
		{input: " YES \n", expected: true, prompts: 1},
		{input: "no\n", expected: false, prompts: 1},
		{input: "maybe\n\nn\n", expected: false, prompts: 3},
	} {
		var out bytes.Buffer
		ok, err := prompt.Confirm(strings.NewReader(tt.input), &out, "delete?")
		require.NoError(t, err, tt.input)
		require.Equal(t, tt.expected, ok, tt.input)
		require.Equal(t, tt.prompts, strings.Count(out.String(), "delete? [y/n]: "), tt.input)
	}
}

func TestConfirmEOF(t *testing.T) {
	ok, err := prompt.Confirm(strings.NewReader("maybe"), &bytes.Buffer{}, "delete?")
	require.Error(t, err)
	require.True(t, prompt.Error.Has(err))
	require.False(t, ok)
}
