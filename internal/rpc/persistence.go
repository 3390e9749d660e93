package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xcawolfe-amzn/agentd/internal/idutil"
	"github.com/xcawolfe-amzn/agentd/internal/model"
)

func registerPersistenceHandlers(t map[string]handlerFunc) {
	t["get_app_settings"] = handleGetAppSettings
	t["update_app_settings"] = handleUpdateAppSettings
	t["domains_list"] = handleDomainsList
	t["domains_create"] = handleDomainsCreate
	t["domains_update"] = handleDomainsUpdate
	t["domains_delete"] = handleDomainsDelete
}

func handleGetAppSettings(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	return d.Store.LoadSettings()
}

func handleUpdateAppSettings(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var settings model.AppSettings
	if err := parseParams(params, &settings); err != nil {
		return nil, err
	}
	if err := d.Store.SaveSettings(settings); err != nil {
		return nil, err
	}
	// This daemon's memory backend (internal/memory.Store) is filesystem-
	// only and carries no API key, so there is nothing to tear down and
	// reconstruct; rebuildMemoryClient is a no-op hook kept for a future
	// backend that does depend on settings.APIKeys.
	d.rebuildMemoryClient(settings)
	return settings, nil
}

// rebuildMemoryClient is the hook point spec.md's persistence category
// names ("update_app_settings rebuilds the optional memory client"); this
// implementation's memory store has no external client to rebuild.
func (d *Dispatcher) rebuildMemoryClient(settings model.AppSettings) {}

func handleDomainsList(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	return d.Store.LoadDomains()
}

func handleDomainsCreate(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var dom model.Domain
	if err := parseParams(params, &dom); err != nil {
		return nil, err
	}
	if _, err := requireString(dom.Name, "name"); err != nil {
		return nil, err
	}
	dom.ID = idutil.NewWorkspaceID()

	domains, err := d.Store.LoadDomains()
	if err != nil {
		return nil, err
	}
	domains = append(domains, dom)
	if err := d.Store.SaveDomains(domains); err != nil {
		return nil, err
	}
	return dom, nil
}

func handleDomainsUpdate(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var dom model.Domain
	if err := parseParams(params, &dom); err != nil {
		return nil, err
	}
	if _, err := requireString(dom.ID, "id"); err != nil {
		return nil, err
	}

	domains, err := d.Store.LoadDomains()
	if err != nil {
		return nil, err
	}
	for i, existing := range domains {
		if existing.ID == dom.ID {
			domains[i] = dom
			if err := d.Store.SaveDomains(domains); err != nil {
				return nil, err
			}
			return dom, nil
		}
	}
	return nil, fmt.Errorf("domain not found")
}

type domainIDParams struct {
	ID string `json:"id"`
}

func handleDomainsDelete(ctx context.Context, d *Dispatcher, params json.RawMessage) (any, error) {
	var p domainIDParams
	if err := parseParams(params, &p); err != nil {
		return nil, err
	}
	if _, err := requireString(p.ID, "id"); err != nil {
		return nil, err
	}

	domains, err := d.Store.LoadDomains()
	if err != nil {
		return nil, err
	}
	var remaining []model.Domain
	for _, dom := range domains {
		if dom.ID != p.ID {
			remaining = append(remaining, dom)
		}
	}
	if err := d.Store.SaveDomains(remaining); err != nil {
		return nil, err
	}
	return map[string]bool{"deleted": true}, nil
}
