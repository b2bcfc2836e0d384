// Copyright 2024 LazyQuery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrEmptyWindow     = errors.New("empty batch window")
	ErrInvalidSortSpec = errors.New("invalid sort specification")
	ErrInvalidProperty = errors.New("invalid property")
	ErrUnknownProperty = errors.New("unknown property: listener leak")
	ErrReadOnly        = errors.New("property is read-only")
	ErrTypeMismatch    = errors.New("value type mismatch")
	ErrShortBatch      = errors.New("query returned fewer items than requested")
	ErrLocked          = errors.New("store is locked by another writer")
)
