package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"rwa-onchain/cache"
	"rwa-onchain/chainerr"
	"rwa-onchain/gateway/price"
)

func priceCmd() *cobra.Command {
	var amount float64
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Show the USD rate used for display prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.New(cmd.Context(), cfg.Cache, appLogger)
			if err != nil {
				return err
			}
			defer store.Close()

			p := price.NewCoinGeckoGateway(cfg.Price, store, appLogger).USDPrice(cmd.Context())
			if p.Fallback {
				pterm.Warning.Printfln("Price service unavailable, using fallback rate")
			}
			pterm.Info.Printfln("1 %s = %s", cfg.Network.Currency, price.FormatUSD(1, p.USD))
			if amount > 0 {
				fmt.Println(price.FormatEtherWithUSD(amount, p.USD, cfg.Network.Currency))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&amount, "amount", 0, "also convert this amount")
	return cmd
}

func verifyTxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-tx <tx-hash>",
		Short: "Check the status of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg, appLogger)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.chain.VerifyTransaction(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data := pterm.TableData{
				{"Tx", v.TxHash},
				{"Status", v.Status},
				{"Block", fmt.Sprint(v.BlockNumber)},
				{"Gas used", fmt.Sprint(v.GasUsed)},
				{"Contract call", fmt.Sprint(v.IsContractCall)},
				{"Explorer", cfg.ExplorerTxURL(v.TxHash)},
			}
			if v.Contract != "" {
				data = append(data, []string{"Contract", v.Contract})
			}
			if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
				return err
			}
			if v.Status == "failed" {
				return chainerr.Reverted(v.TxHash)
			}
			return nil
		},
	}
}
