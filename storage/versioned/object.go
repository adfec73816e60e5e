////////////////////////////////////////////////////////////////////////////////
// Copyright © 2024 intu messenger                                            //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"fmt"
	"time"
)

// Object is the record stored for every key in the KV. It carries the schema
// version of the serialized data and the time it was written so stores can
// migrate and audit their contents.
type Object struct {
	// Version of the schema the Data was written under.
	Version uint64

	// Timestamp of when the object was written.
	Timestamp time.Time

	// Data is the serialized form of the stored object.
	Data []byte
}

// Unmarshal deserializes an Object from a byte slice. It is what makes
// Objects storable in a KeyValue.
func (obj *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, obj)
}

// Marshal serializes an Object into a byte slice. It is what makes Objects
// storable in a KeyValue.
func (obj *Object) Marshal() []byte {
	d, err := json.Marshal(obj)
	if err != nil {
		// All fields are exported with simple types; failure to marshal
		// means something is deeply wrong.
		panic(fmt.Sprintf("Could not marshal: %+v", obj))
	}
	return d
}
