package cli

import (
	"fmt"
	"math/big"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rwa-onchain/ether"
	"rwa-onchain/handler/httpx"
	"rwa-onchain/model"
	marketplaceUsecase "rwa-onchain/usecase/marketplace"
)

func listingsCmd() *cobra.Command {
	var assetType string
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Show marketplace listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg, appLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.marketplace.Listings(cmd.Context())
			if err != nil {
				return err
			}
			if res.Demo {
				pterm.Warning.Println(res.Message)
			}
			listings := res.Listings
			if assetType != "" {
				listings = marketplaceUsecase.FilterByType(listings, assetType)
			}
			if len(listings) == 0 {
				pterm.Info.Println("No listings found")
				return nil
			}
			return pterm.DefaultTable.WithHasHeader().WithData(listingTable(listings, cfg.Network.Currency)).Render()
		},
	}
	cmd.Flags().StringVarP(&assetType, "type", "t", "", "filter by asset type (e.g. \"Real Estate\")")
	return cmd
}

// listingTable は出品一覧を表形式にする
func listingTable(listings []model.Listing, symbol string) pterm.TableData {
	data := pterm.TableData{{"Token", "Name", "Type", "Available", "Price", "Seller"}}
	for _, l := range listings {
		priceLabel := l.PriceLabel
		if priceLabel == "" {
			wei, _ := new(big.Int).SetString(l.PriceWei, 10)
			priceLabel = fmt.Sprintf("%s %s", ether.Format(wei), symbol)
		}
		data = append(data, []string{
			l.TokenID,
			l.Name,
			l.AssetType,
			fmt.Sprint(l.Amount),
			priceLabel,
			shortAddress(l.Seller),
		})
	}
	return data
}

func shortAddress(addr string) string {
	if len(addr) < 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func quoteCmd() *cobra.Command {
	var (
		quantity int64
		sell     bool
	)
	cmd := &cobra.Command{
		Use:   "quote <token-id>",
		Short: "Quote buying (or selling) a quantity of a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenID, err := httpx.ParseTokenID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			var q *model.Quote
			if sell {
				q, err = a.investor.QuoteSell(cmd.Context(), tokenID, quantity)
			} else {
				q, err = a.marketplace.QuoteBuy(cmd.Context(), tokenID, quantity)
			}
			if err != nil {
				return err
			}
			sym := cfg.Network.Currency
			data := pterm.TableData{
				{"Token", q.TokenID},
				{"Quantity", fmt.Sprint(q.Quantity)},
				{"Unit price", ether.Format(q.PriceWei) + " " + sym},
				{"Subtotal", ether.Format(q.Subtotal) + " " + sym},
				{fmt.Sprintf("Fee (%d bps)", q.FeeBps), ether.Format(q.Fee) + " " + sym},
			}
			if sell {
				data = append(data, []string{"You receive", ether.Format(q.Net) + " " + sym})
			} else {
				data = append(data, []string{"Total", ether.Format(q.Total) + " " + sym})
			}
			if q.Display != "" {
				data = append(data, []string{"Display", q.Display})
			}
			return pterm.DefaultTable.WithData(data).Render()
		},
	}
	cmd.Flags().Int64VarP(&quantity, "quantity", "q", 1, "number of tokens")
	cmd.Flags().BoolVar(&sell, "sell", false, "quote a sell instead of a buy")
	return cmd
}
