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

// Package client ties together endpoint discovery (package endpoint),
// configuration (package config), transport dialing and broker
// auto-spawn (package transport), and the wire codec (package frame) into
// one connection: Client.Connect resolves a broker, connects,
// registers, and from then on delivers everything that happens through
// Event values passed to registered EventHandlers.
package client
