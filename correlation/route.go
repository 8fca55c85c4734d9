// Copyright (c) 2023 xCherryIO Organization
// SPDX-License-Identifier: Apache-2.0

package correlation

import "sort"

// Route is a waiting receive registered under a key set
type Route struct {
	Id     string
	KeySet KeySet
}

// Select picks the routes that a message carrying keys is delivered to, from routes
// listed in registration order.
//
// For a single delivery, subsets of the message key set are tried from the strongest
// (most keys) to the weakest, and within one subset the earliest registered route wins.
// Routes registered without any key are the weakest match of all.
// With allRoute, every route the message is routable to is selected.
func Select(keys KeySet, routes []Route, allRoute bool) []Route {
	if allRoute {
		var selected []Route
		for _, r := range routes {
			if keys.IsRoutableTo(r.KeySet, true) {
				selected = append(selected, r)
			}
		}
		return selected
	}

	subsets := keys.FindSubSets()
	sort.SliceStable(subsets, func(i, j int) bool {
		return subsets[i].Len() > subsets[j].Len()
	})
	if !subsets[len(subsets)-1].IsEmpty() {
		subsets = append(subsets, KeySet{})
	}

	for _, subset := range subsets {
		for _, r := range routes {
			if r.KeySet.Equal(subset) {
				return []Route{r}
			}
		}
	}
	return nil
}
