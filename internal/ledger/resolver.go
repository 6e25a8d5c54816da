package ledger

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// Resolver finds or creates ledger entities for a processing run. Lookups are
// cached for the lifetime of the resolver so a batch of receipts from the
// same vendor costs one API round trip, not one per receipt. Build a fresh
// resolver per run; the caches are deliberately not shared across runs.
type Resolver struct {
	client *Client

	vendors       map[string]Entity
	customers     map[string]Entity
	accounts      []Entity
	accountByName map[string]Entity
}

func NewResolver(client *Client) *Resolver {
	return &Resolver{
		client:    client,
		vendors:   map[string]Entity{},
		customers: map[string]Entity{},
	}
}

// Vendor returns the ledger vendor for a display name, creating it when no
// existing vendor matches under normalized comparison.
func (r *Resolver) Vendor(ctx context.Context, name string) (Entity, error) {
	return r.findOrCreate(ctx, r.vendors, name, r.client.FindVendor, r.client.CreateVendor)
}

// Customer returns the ledger customer (job) for a name, creating it when
// missing.
func (r *Resolver) Customer(ctx context.Context, name string) (Entity, error) {
	return r.findOrCreate(ctx, r.customers, name, r.client.FindCustomer, r.client.CreateCustomer)
}

// Account resolves the expense account for a category name. Fallback order:
// the named category, then the configured default account, then any expense
// account with a job-cost flavored name, then the first expense account on
// the ledger. Accounts are never created.
func (r *Resolver) Account(ctx context.Context, category, defaultName string) (Entity, error) {
	if err := r.loadAccounts(ctx); err != nil {
		return Entity{}, err
	}
	if e, ok := r.accountByName[normalizeName(category)]; ok {
		return e, nil
	}
	if e, ok := r.accountByName[normalizeName(defaultName)]; ok {
		return e, nil
	}
	if e, ok := r.keywordAccount(); ok {
		return e, nil
	}
	if len(r.accounts) > 0 {
		return r.accounts[0], nil
	}
	return Entity{}, errors.New("no expense accounts on ledger")
}

// accountKeywords, pre-normalized. An account named after job costs,
// materials or supplies is a better home for a receipt than whatever
// account the ledger happens to list first.
var accountKeywords = []string{"job", "material", "supply", "supplies", "costofgoods", "cogs"}

func (r *Resolver) keywordAccount() (Entity, bool) {
	for _, a := range r.accounts {
		name := normalizeName(a.Name)
		for _, kw := range accountKeywords {
			if strings.Contains(name, kw) {
				return a, true
			}
		}
	}
	return Entity{}, false
}

func (r *Resolver) loadAccounts(ctx context.Context) error {
	if r.accountByName != nil {
		return nil
	}
	accounts, err := r.client.ListExpenseAccounts(ctx)
	if err != nil {
		return err
	}
	r.accounts = accounts
	r.accountByName = make(map[string]Entity, len(accounts))
	for _, a := range accounts {
		key := normalizeName(a.Name)
		if _, ok := r.accountByName[key]; !ok {
			r.accountByName[key] = a
		}
	}
	return nil
}

func (r *Resolver) findOrCreate(
	ctx context.Context,
	cache map[string]Entity,
	name string,
	find func(context.Context, string) (*Entity, error),
	create func(context.Context, string) (*Entity, error),
) (Entity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entity{}, errors.New("empty entity name")
	}
	key := normalizeName(name)
	if e, ok := cache[key]; ok {
		return e, nil
	}

	found, err := find(ctx, name)
	if err != nil {
		return Entity{}, err
	}
	if found != nil && normalizeName(found.Name) == key {
		cache[key] = *found
		return *found, nil
	}

	created, err := create(ctx, name)
	if err != nil {
		return Entity{}, err
	}
	if created == nil {
		return Entity{}, errors.New("ledger create returned no entity")
	}
	cache[key] = *created
	return *created, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName folds case, punctuation and spacing so "Lowe's" and
// "lowes" resolve to the same entity.
func normalizeName(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}
