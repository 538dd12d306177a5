// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package storage

import (
	"net/url"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"storj.io/repostore/private/kvstore"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	options := cbor.CoreDetEncOptions()
	options.Time = cbor.TimeRFC3339Nano

	var err error
	encMode, err = options.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

func encode(v interface{}) (kvstore.Value, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, Error.New("encoding failed: %v", err)
	}
	return data, nil
}

func decode(data kvstore.Value, v interface{}) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return Error.New("decoding failed: %v", err)
	}
	return nil
}

const (
	componentPrefix = "component/"
	assetPrefix     = "asset/"
)

// componentsPrefix is the key prefix of every component in the repository.
func componentsPrefix(repo string) string {
	return componentPrefix + url.PathEscape(repo) + "/"
}

// assetsPrefix is the key prefix of every asset in the repository.
func assetsPrefix(repo string) string {
	return assetPrefix + url.PathEscape(repo) + "/"
}

func componentKey(repo string, key ComponentKey) kvstore.Key {
	return kvstore.Key(componentsPrefix(repo) + strings.Join([]string{
		url.PathEscape(key.Group),
		url.PathEscape(key.Name),
		url.PathEscape(key.Version),
	}, "/"))
}

func assetKey(repo, name string) kvstore.Key {
	return kvstore.Key(assetsPrefix(repo) + name)
}
