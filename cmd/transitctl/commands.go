package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"buswisely.org/internal/app"
	"buswisely.org/internal/arrivals"
	"buswisely.org/internal/models"
)

func newStopsCmd(opts *rootOptions) *cobra.Command {
	var lat, lon string

	cmd := &cobra.Command{
		Use:   "stops",
		Short: "List the nearest distinct stops to a coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			point, err := arrivals.ParseCoordinate(lat, lon)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app.Application) (any, error) {
				stops, err := a.Arrivals.NearbyStops(ctx, point.Lat, point.Lon)
				if err != nil {
					return nil, err
				}
				return models.NewStopModels(stops), nil
			})
		},
	}

	cmd.Flags().StringVar(&lat, "lat", "", "Latitude in decimal degrees")
	cmd.Flags().StringVar(&lon, "lon", "", "Longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}

func newArrivalsCmd(opts *rootOptions) *cobra.Command {
	var stopID, mode string

	cmd := &cobra.Command{
		Use:   "arrivals",
		Short: "Show minutes until the next arrivals at a stop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groupMode, err := arrivals.ParseMode(mode)
			if err != nil {
				return err
			}
			stopID = strings.TrimSpace(stopID)
			if err := arrivals.ValidateStopID(stopID); err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app.Application) (any, error) {
				result, err := a.Arrivals.ArrivalsForStop(ctx, stopID, groupMode)
				if err != nil {
					return nil, err
				}
				return models.ArrivalsMap(result), nil
			})
		},
	}

	cmd.Flags().StringVar(&stopID, "stop", "", "Stop id")
	cmd.Flags().StringVar(&mode, "mode", "", "Group by route or headsign; defaults to the configured mode")
	_ = cmd.MarkFlagRequired("stop")
	return cmd
}

func newNearbyCmd(opts *rootOptions) *cobra.Command {
	var lat, lon, mode string

	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "Show arrivals at every stop near a coordinate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			point, err := arrivals.ParseCoordinate(lat, lon)
			if err != nil {
				return err
			}
			groupMode, err := arrivals.ParseMode(mode)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app.Application) (any, error) {
				agg, err := a.Arrivals.Aggregate(ctx, point.Lat, point.Lon, groupMode)
				if err != nil {
					return nil, err
				}
				return models.NewNearbyArrivalsData(agg), nil
			})
		},
	}

	cmd.Flags().StringVar(&lat, "lat", "", "Latitude in decimal degrees")
	cmd.Flags().StringVar(&lon, "lon", "", "Longitude in decimal degrees")
	cmd.Flags().StringVar(&mode, "mode", "", "Group by route or headsign; defaults to the configured mode")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
