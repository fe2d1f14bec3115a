// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"fmt"
	"strings"
)

// NewFromBackend selects and constructs a Client by backend name.
//
// Supported backends: "openai" (and OpenAI-compatible endpoints via
// OPENAI_BASE_URL), "ollama". The empty string defaults to ollama so
// the service runs without cloud credentials out of the box.
func NewFromBackend(backend string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "ollama", "local":
		return NewOllamaClient()
	case "openai":
		return NewOpenAIClient()
	default:
		return nil, fmt.Errorf("unknown LLM backend %q (want openai or ollama)", backend)
	}
}
