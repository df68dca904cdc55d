package router

import (
	"strings"

	"github.com/smallbiznis/paybridge/internal/config"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
)

// Rule pulls a candidate reference out of a resource.
type Rule struct {
	Name    string
	Extract func(*Resource) string
}

// Rules are evaluated in order and the first non-empty value wins.
var Rules = []Rule{
	{Name: "purchase_units", Extract: fromPurchaseUnits},
	{Name: "custom_id", Extract: func(r *Resource) string { return r.CustomID }},
	{Name: "invoice_id", Extract: func(r *Resource) string { return r.InvoiceID }},
	{Name: "related_order_id", Extract: (*Resource).GatewayOrderID},
}

func fromPurchaseUnits(r *Resource) string {
	for _, unit := range r.PurchaseUnits {
		if ref := strings.TrimSpace(unit.CustomID); ref != "" {
			return ref
		}
	}
	for _, unit := range r.PurchaseUnits {
		if ref := strings.TrimSpace(unit.InvoiceID); ref != "" {
			return ref
		}
	}
	return ""
}

// Reference is the extracted identifier and, when it parses, its target.
type Reference struct {
	Raw      string
	Rule     string
	Target   orderdomain.Target
	Resolved bool
}

// Extract applies Rules to the resource and resolves the first hit against
// the scope table. A hit that does not parse is reported unresolved.
func Extract(table config.ScopeTable, resource *Resource) Reference {
	if resource == nil {
		return Reference{}
	}
	for _, rule := range Rules {
		raw := strings.TrimSpace(rule.Extract(resource))
		if raw == "" {
			continue
		}
		ref := Reference{Raw: raw, Rule: rule.Name}
		if scope, id, ok := table.Resolve(raw); ok {
			ref.Target = orderdomain.Target{Scope: scope, ID: id}
			ref.Resolved = true
		}
		return ref
	}
	return Reference{}
}
