package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "figimap/internal/config"
	"figimap/internal/render"
	"figimap/pkg/contract"
	"figimap/plugins/detector/pattern"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "figimap",
		Short: "Resolve financial identifiers to FIGIs via OpenFIGI",
		Long: `figimap detects identifier types (ISIN, CUSIP, SEDOL, Bloomberg ID, ticker),
expands tickers into security-type variants, batches requests under the
rate-limit tier cap and maps them through the OpenFIGI mapping API.

Without an API key requests run on the anonymous tier (10 per call).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.initDir == "" {
				if len(args) > 0 {
					return asConfigError(fmt.Errorf("unknown command %q", args[0]))
				}
				return cmd.Help()
			}
			dir := a.flags.initDir
			// --init-config 裸开关后跟目录时，目录以位置参数出现
			if dir == "." && len(args) == 1 {
				dir = args[0]
			}
			written, err := cfgpkg.WriteTemplates(dir)
			if err != nil {
				return asConfigError(fmt.Errorf("生成默认配置失败: %w", err))
			}
			for _, p := range written {
				fprintf(a.stdout, "已生成 %s\n", p)
			}
			if len(written) == 0 {
				fprintf(a.stdout, "模板已存在，跳过\n")
			}
			return nil
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return asConfigError(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.config, "config", "", "配置文件路径（YAML）；缺省读取 ./figimap.yaml（若存在）")
	pf.StringVar(&a.flags.apiKey, "api-key", "", "OpenFIGI API Key（覆盖配置与环境变量）")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "OpenFIGI 服务地址（覆盖配置）")
	pf.StringVar(&a.flags.mapper, "mapper", "", "传输实现：openfigi|mock|flaky（覆盖配置）")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "日志等级：debug|info|warn|error")
	// retry-limit 仅在显式给出时覆盖（含 0 与负数，负数由校验拒绝）。
	pf.IntVar(&a.flags.retryLimit, "retry-limit", cfgpkg.Defaults().RetryLimit, "瞬时失败最大重试次数（0..10；0 表示不重试）")
	a.flagChanged = pf.Changed
	pf.IntVar(&a.flags.timeoutMs, "timeout-ms", 0, "单次 HTTP 尝试超时（毫秒）")
	pf.BoolVar(&a.flags.json, "json", false, "以 JSON 输出结果")
	pf.BoolVar(&a.flags.showRateLimit, "show-rate-limit", false, "网络命令结束后打印限流快照（stderr）")
	pf.BoolVar(&a.flags.status, "status", true, "终端批次进度提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	root.Flags().StringVar(&a.flags.initDir, "init-config", "", "在指定目录生成 figimap.yaml 与 .env 模板（已存在则跳过）；不带值时为当前目录")
	root.Flags().Lookup("init-config").NoOptDefVal = "."

	root.AddCommand(
		newDetectCmd(a),
		newParseCmd(a),
		newResolveCmd(a),
		newBatchCmd(a),
		newMapCmd(a),
		newSearchCmd(a),
		newValidateCmd(a),
	)
	return root
}

func newDetectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detect TOKEN...",
		Short: "Classify identifiers by shape (offline)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := a.detector()
			if err != nil {
				return err
			}
			ids := make([]contract.DetectedIdentifier, len(args))
			lines := make([]string, len(args))
			for i, raw := range args {
				ids[i] = det.Detect(raw)
				lines[i] = fmt.Sprintf("%q → %s", ids[i].Value, render.Detected(ids[i]))
			}
			return a.emit(ids, strings.Join(lines, "\n"))
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse [FILE|-]",
		Short: "Parse free text or CSV into detected identifiers (offline)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := a.detector()
			if err != nil {
				return err
			}
			text, err := a.readInput(args)
			if err != nil {
				return err
			}
			p := det.Parse(text)
			return a.emit(p, render.ParseDetails(p))
		},
	}
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve IDENTIFIER",
		Short: "Detect the identifier type and resolve it (tickers try all variants)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.resolver()
			if err != nil {
				return err
			}
			defer a.afterNetwork()
			res, err := r.ResolveOne(cmd.Context(), args[0])
			if err != nil {
				if res.Identifier.Kind == contract.KindUnknown && errors.Is(err, contract.ErrValidation) {
					fprintf(a.stdout, "%s\n", render.UnknownIdentifier(args[0]))
				}
				return err
			}
			return a.emit(res, render.Resolution(res))
		},
	}
}

func newBatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch [FILE|-]",
		Short: "Parse text or CSV and resolve every identifier in batches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput(args)
			if err != nil {
				return err
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			defer a.afterNetwork()
			rep, err := r.ResolveText(cmd.Context(), text)
			if err != nil {
				return err
			}
			return a.emit(rep, render.Batch(rep.Parsed.Summary, rep.Results))
		},
	}
}

func newMapCmd(a *app) *cobra.Command {
	var (
		idType   string
		exch     string
		requests string
	)
	cmd := &cobra.Command{
		Use:   "map [VALUE...]",
		Short: "Send raw mapping requests (chunked under the tier cap)",
		Long: `Map sends raw mapping requests. Either pass values with --id-type, or
provide a JSON array of mapping requests with --requests FILE ("-" for STDIN).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []contract.MappingRequest
			switch {
			case requests != "":
				text, err := a.readInput([]string{requests})
				if err != nil {
					return err
				}
				if err := json.Unmarshal([]byte(text), &reqs); err != nil {
					return contract.NewValidationError("requests: %v", err)
				}
			case len(args) > 0:
				t := contract.IDType(strings.ToUpper(strings.TrimSpace(idType)))
				for _, v := range args {
					reqs = append(reqs, contract.MappingRequest{IDType: t, IDValue: v, ExchCode: exch})
				}
			default:
				return asConfigError(errors.New("map: provide VALUE arguments with --id-type, or --requests FILE"))
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			defer a.afterNetwork()
			resps, err := r.Map(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return a.emit(resps, render.Mapped(reqs, resps))
		},
	}
	cmd.Flags().StringVar(&idType, "id-type", string(contract.IDISIN), "idType，例如 ID_ISIN、ID_CUSIP、ID_EXCH_SYMBOL")
	cmd.Flags().StringVar(&exch, "exch", "", "exchCode 过滤")
	cmd.Flags().StringVar(&requests, "requests", "", "JSON 请求数组文件（- 为 STDIN）")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		f        contract.Filters
		sector   string
		secType  string
		unlisted bool
	)
	cmd := &cobra.Command{
		Use:       "search isin|cusip|sedol|ticker|bbg VALUE",
		Short:     "Search a single identifier of an explicit type, with optional filters",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"isin", "cusip", "sedol", "ticker", "bbg"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := pattern.ParseKind(args[0])
			if !ok {
				return asConfigError(fmt.Errorf("search: unknown identifier kind %q", args[0]))
			}
			idType, _ := kind.IDType()
			f.MarketSecDes = contract.MarketSector(sector)
			f.SecurityType = contract.SecurityType(secType)
			if cmd.Flags().Changed("include-unlisted") {
				v := unlisted
				f.IncludeUnlistedEquities = &v
			}
			r, err := a.resolver()
			if err != nil {
				return err
			}
			defer a.afterNetwork()
			resp, err := r.Search(cmd.Context(), idType, args[1], f)
			if err != nil {
				return err
			}
			return a.emit(resp, render.Response(resp))
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.ExchCode, "exch", "", "exchCode，例如 US")
	fl.StringVar(&f.MICCode, "mic", "", "micCode，例如 XNAS")
	fl.StringVar(&f.Currency, "currency", "", "三位币种，例如 USD")
	fl.StringVar(&sector, "market-sector", "", "marketSecDes，例如 Equity")
	fl.StringVar(&secType, "security-type", "", "securityType，例如 Common Stock")
	fl.StringVar(&f.SecurityType2, "security-type2", "", "securityType2，例如 Common Stock")
	fl.BoolVar(&unlisted, "include-unlisted", false, "includeUnlistedEquities")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate isin|cusip|sedol|bbg VALUE",
		Short: "Check whether a value has the character shape of the given kind (no checksum)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := pattern.ParseKind(args[0])
			if !ok || kind == contract.KindTicker {
				return asConfigError(fmt.Errorf("validate: unsupported kind %q", args[0]))
			}
			valid, format := pattern.ShapeValid(kind, args[1])
			out := struct {
				Kind   contract.Kind `json:"type"`
				Value  string        `json:"value"`
				Valid  bool          `json:"valid"`
				Format string        `json:"format,omitempty"`
			}{kind, args[1], valid, format}
			return a.emit(out, render.Validation(kind, args[1], valid, format))
		},
	}
}
