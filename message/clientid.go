// Copyright 2020 DataStax
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package message implements the structured message model exchanged with
// the broker, plus conversion to and from its legacy colon-joined flat
// form.
package message

// ClientId identifies a participant on the bus. Zero designates the
// broker itself; -1 designates broadcast or "not yet assigned"; positive
// values designate peer clients.
type ClientId int32

const (
	// BrokerId is the reserved id of the broker.
	BrokerId ClientId = 0
	// UnassignedId is used before the broker has assigned a real id, and
	// as the broadcast receiver set in the legacy V0 encoding.
	UnassignedId ClientId = -1
)
