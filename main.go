package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/xui-tools/xui-bot/config"
	"github.com/xui-tools/xui-bot/database"
	"github.com/xui-tools/xui-bot/logger"
	"github.com/xui-tools/xui-bot/web"
	"github.com/xui-tools/xui-bot/web/service"
)

func runBot() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
	defer logger.CloseLogger()

	if err := database.InitDB(config.GetDBPath()); err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			logger.Warning("close database err:", err)
		}
	}()

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("SIGHUP received, restarting ...")
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			if err := server.Start(); err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func showSetting() {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}
	notifications, err := settingService.GetNotificationsEnabled()
	if err != nil {
		fmt.Println("get notifications setting failed:", err)
	}
	backups, err := settingService.GetBackupEnabled()
	if err != nil {
		fmt.Println("get backup setting failed:", err)
	}
	paused, err := settingService.GetPollPaused()
	if err != nil {
		fmt.Println("get poll paused setting failed:", err)
	}
	fmt.Println("current bot settings as follows:")
	fmt.Println("panel url:", config.GetPanelURL())
	fmt.Println("poll interval:", config.GetPollInterval())
	fmt.Println("polling paused:", paused)
	fmt.Println("notifications enabled:", notifications)
	fmt.Println("backups enabled:", backups)
	fmt.Println("backup schedule:", config.GetBackupCron())
}

func updateSetting(notifications string, backups string) {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}

	if notifications != "" {
		err := settingService.SetNotificationsEnabled(notifications == "on")
		if err != nil {
			fmt.Println("set notifications failed:", err)
		} else {
			fmt.Println("set notifications success")
		}
	}

	if backups != "" {
		err := settingService.SetBackupEnabled(backups == "on")
		if err != nil {
			fmt.Println("set backups failed:", err)
		} else {
			fmt.Println("set backups success")
		}
	}
}

func runBackup() {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		fmt.Println(err)
		return
	}

	backupService := service.BackupService{}
	path, err := backupService.CreateBackup()
	if err != nil {
		fmt.Println("backup failed:", err)
		return
	}
	fmt.Println("backup written to", path)
}

func runRestore(backupPath string) {
	backupService := service.BackupService{}
	raw, err := backupService.Restore(backupPath)
	if err != nil {
		fmt.Println("restore failed:", err)
		return
	}

	dbPath := config.GetDBPath()
	if _, err := os.Stat(dbPath); err == nil {
		// Keep the replaced database next to the new one.
		if err := os.Rename(dbPath, dbPath+".old"); err != nil {
			fmt.Println("preserve current database failed:", err)
			return
		}
		fmt.Println("current database moved to", dbPath+".old")
	}

	if err := os.WriteFile(dbPath, raw, 0o640); err != nil {
		fmt.Println("write restored database failed:", err)
		return
	}
	fmt.Println("database restored from", backupPath)
}

func main() {
	var rootCmd = &cobra.Command{
		Use: "xui-bot",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the bot",
		Run: func(cmd *cobra.Command, args []string) {
			runBot()
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Manage settings",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			showSetting()
		},
	}

	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update settings",
		Run: func(cmd *cobra.Command, args []string) {
			notifications, _ := cmd.Flags().GetString("notifications")
			backups, _ := cmd.Flags().GetString("backups")
			updateSetting(notifications, backups)
		},
	}

	updateCmd.Flags().String("notifications", "", "enable or disable notifications (on|off)")
	updateCmd.Flags().String("backups", "", "enable or disable scheduled backups (on|off)")

	var backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Create a database backup now",
		Run: func(cmd *cobra.Command, args []string) {
			runBackup()
		},
	}

	var restoreCmd = &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace the database with a backup",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runRestore(args[0])
		},
	}

	settingCmd.AddCommand(showCmd, updateCmd)
	rootCmd.AddCommand(runCmd, settingCmd, backupCmd, restoreCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
