////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package versioned wraps an ekv.KeyValue with hierarchical key prefixes and
// schema-versioned objects. Every store in the client hangs off one KV root,
// each under its own prefix, so unrelated stores can never collide on keys.
package versioned

import (
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

// PrefixSeparator separates the prefix elements of a fully qualified key.
const PrefixSeparator = "/"

// KV stores versioned objects in an underlying key-value store. A KV is
// cheap to copy; Prefix derives children that share the same backing data.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV creates a versioned key-value store backed by anything implementing
// ekv.KeyValue.
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// Get returns the object stored at the given key and schema version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	fullKey := v.makeKey(key, version)
	jww.TRACE.Printf("kv get %q", fullKey)

	result := Object{}
	if err := v.data.Get(fullKey, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set upserts the object at the given key. The version under which the
// object is filed comes from the object itself.
func (v *KV) Set(key string, object *Object) error {
	fullKey := v.makeKey(key, object.Version)
	jww.TRACE.Printf("kv set %q", fullKey)
	return v.data.Set(fullKey, object)
}

// Delete removes the object at the given key and version. Deleting a missing
// key is not an error.
func (v *KV) Delete(key string, version uint64) error {
	fullKey := v.makeKey(key, version)
	jww.TRACE.Printf("kv delete %q", fullKey)
	return v.data.Delete(fullKey)
}

// Prefix returns a child KV whose keys all live under the given prefix.
func (v *KV) Prefix(prefix string) *KV {
	return &KV{
		data:   v.data,
		prefix: v.prefix + prefix + PrefixSeparator,
	}
}

// GetPrefix returns the accumulated prefix of the KV.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// GetFullKey returns the fully qualified key for the given key and version.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

// Exists returns false if the error returned by a Get indicates the key is
// absent, and true for any other error or no error.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}
