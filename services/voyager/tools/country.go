// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

const restCountriesHost = "restcountries.com"

// CountryTool resolves country facts (currency, languages, capital)
// from the REST Countries API. Used by packing, policy and
// destination turns that need country-level context.
type CountryTool struct {
	httpClient *http.Client
	baseURL    string
}

// NewCountryTool creates the adapter with the production endpoint.
func NewCountryTool() *CountryTool {
	return &CountryTool{
		httpClient: &http.Client{Timeout: 8 * time.Second},
		baseURL:    "https://" + restCountriesHost + "/v3.1/name",
	}
}

// WithBaseURL overrides the endpoint, for tests.
func (t *CountryTool) WithBaseURL(base string) *CountryTool {
	t.baseURL = base
	return t
}

func (t *CountryTool) Name() string { return "country" }
func (t *CountryTool) Host() string { return restCountriesHost }

type countryResponse struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Capital    []string `json:"capital"`
	Region     string   `json:"region"`
	Currencies map[string]struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
	Languages map[string]string `json:"languages"`
}

// Invoke looks up args["country"] and summarizes the first match.
func (t *CountryTool) Invoke(ctx context.Context, args map[string]string) ([]datatypes.Fact, error) {
	country := args["country"]
	reqURL := t.baseURL + "/" + url.PathEscape(country) + "?fields=name,capital,region,currencies,languages"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("country lookup %q: status %d", country, resp.StatusCode)
	}

	var countries []countryResponse
	if err := json.NewDecoder(resp.Body).Decode(&countries); err != nil {
		return nil, err
	}
	if len(countries) == 0 {
		return nil, fmt.Errorf("country lookup %q: no results", country)
	}
	c := countries[0]

	currencies := make([]string, 0, len(c.Currencies))
	for code, cur := range c.Currencies {
		currencies = append(currencies, fmt.Sprintf("%s (%s)", cur.Name, code))
	}
	languages := make([]string, 0, len(c.Languages))
	for _, lang := range c.Languages {
		languages = append(languages, lang)
	}
	// Map iteration order leaks into the fact value; sort for stable
	// receipts.
	sort.Strings(currencies)
	sort.Strings(languages)

	capital := ""
	if len(c.Capital) > 0 {
		capital = c.Capital[0]
	}
	return []datatypes.Fact{{
		Source: "restcountries",
		Key:    "country_profile",
		Value: fmt.Sprintf("%s (%s): capital %s, currency %s, languages %s",
			c.Name.Common, c.Region, capital,
			strings.Join(currencies, ", "), strings.Join(languages, ", ")),
		URL: reqURL,
	}}, nil
}
