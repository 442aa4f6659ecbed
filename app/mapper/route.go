package mapper

import (
	"github.com/orvion-sh/orvion-quick-start/app/entity"
	"github.com/orvion-sh/orvion-quick-start/app/types"
)

func RouteToSummary(item *entity.Route) *types.RouteSummary {
	if item == nil {
		return nil
	}

	status := item.Status
	if status == "" {
		status = entity.RouteStatusActive
	}

	return &types.RouteSummary{
		ID:               item.ID,
		RoutePattern:     item.Pattern,
		Method:           item.Method,
		Amount:           item.Amount,
		Currency:         item.Currency,
		Name:             item.Name,
		Description:      item.Description,
		Status:           status,
		ReceiverConfigID: item.ReceiverConfigID,
	}
}

func RoutesToSummaries(items []*entity.Route) []*types.RouteSummary {
	result := make([]*types.RouteSummary, 0, len(items))
	for _, item := range items {
		result = append(result, RouteToSummary(item))
	}
	return result
}
