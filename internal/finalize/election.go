package finalize

import (
	"regexp"
	"sort"
	"strings"
)

// phoneRole labels assigned during election.
const (
	roleUnknown = "unknown"
	roleShop    = "shop"
	roleClient  = "client"
)

var nonDigitRe = regexp.MustCompile(`\D`)

func digitsOf(s string) string { return nonDigitRe.ReplaceAllString(s, "") }

// ElectClientPhones separates the customer's number(s) from the shop's own
// contact number when several numbers accumulated in one session. See
// electClientPhones; exported for the order-update flow, which re-runs the
// election over a delta message.
func (e *Engine) ElectClientPhones(rawMessages, phones []string) []string {
	return e.electClientPhones(rawMessages, phones)
}

// electClientPhones scans the raw history for keyword co-occurrence with
// each candidate phone, first over whole messages and then line by line for
// precision. A shop marking always wins over a client marking. The result
// preference order:
//
//  1. every phone marked client
//  2. otherwise every phone not marked shop
//  3. otherwise all candidates (ambiguity surfaces every phone rather
//     than guessing)
func (e *Engine) electClientPhones(rawMessages, phones []string) []string {
	if len(phones) == 0 {
		return nil
	}
	kw := e.rules.Keywords()

	roles := make(map[string]string, len(phones))
	for _, p := range phones {
		roles[p] = roleUnknown
	}

	mark := func(text string) {
		low := strings.ToLower(text)
		found := e.ex.Phones(text)
		if len(found) == 0 {
			return
		}
		isShop := containsAny(low, kw.Shop)
		isClient := containsAny(low, kw.Client)
		for _, p := range found {
			if _, ok := roles[p]; !ok {
				roles[p] = roleUnknown
			}
			switch {
			case isShop:
				roles[p] = roleShop
			case isClient && roles[p] != roleShop:
				roles[p] = roleClient
			}
		}
	}

	for _, msg := range rawMessages {
		mark(msg)
	}
	for _, msg := range rawMessages {
		for _, line := range strings.Split(msg, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				mark(line)
			}
		}
	}

	var client, nonShop []string
	for p, role := range roles {
		if role == roleClient {
			client = append(client, p)
		}
		if role != roleShop {
			nonShop = append(nonShop, p)
		}
	}
	if len(client) > 0 {
		sort.Strings(client)
		return client
	}
	if len(nonShop) > 0 {
		sort.Strings(nonShop)
		return nonShop
	}
	out := append([]string(nil), phones...)
	sort.Strings(out)
	return out
}

func containsAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
