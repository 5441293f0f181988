// Package sysnum enumerates the kernel service identifiers.
package sysnum

const (
	NullCall = iota
	TextOut
	PauseThread
	GetThreadID
	GetProcessID
	ProcessExit
	ProcessWaitForTermination
	CreateProcess
	ProcessLoadExec
	CreateSharedMem
	ObtainSharedMem
	UnmapSharedMem
	OpenFile
	CreateMemMapping
	UnmapMemMapping
	GetProcessHeapMem
	ReadFile
	WriteFile
	CreateDir
	RemoveFile
	CloseFile
	FileIoControl
	FileStat
	ProcessSleep
	SignalReturn
	SetSignal
	GetSystemTimerTick
	GetFontID
	GetNumFonts
	GetFontSize
	MemMapDirty
	TTYCreate
	CreateUserThread
	SetFileToProcess
	ProcessHeapUnmap
	SendSignal
	GetCurrentTime
	OpenDir
	ReadDir
	CreateTimer
	StartTimer
	StopTimer
	DestroyTimer
	ProcessGetFileDesc
	FileSetOffset
	GetTimeOfDay
	CreateSocket
	NetConnect
	NetSend
	NetReceive
	SocketSetOpt
	NetBind
	NetAccept
	NetListen
	CreatePipe
	GetVDiskInfo
	GetVDiskPartitionInfo
	GetEnvironmentBlock

	// MaxSyscall is the capacity of the syscall table.
	MaxSyscall
)

var Names = [MaxSyscall]string{
	NullCall:                  "null_call",
	TextOut:                   "text_out",
	PauseThread:               "pause_thread",
	GetThreadID:               "get_thread_id",
	GetProcessID:              "get_process_id",
	ProcessExit:               "process_exit",
	ProcessWaitForTermination: "process_wait_for_termination",
	CreateProcess:             "create_process",
	ProcessLoadExec:           "process_load_exec",
	CreateSharedMem:           "create_shared_mem",
	ObtainSharedMem:           "obtain_shared_mem",
	UnmapSharedMem:            "unmap_shared_mem",
	OpenFile:                  "open_file",
	CreateMemMapping:          "create_mem_mapping",
	UnmapMemMapping:           "unmap_mem_mapping",
	GetProcessHeapMem:         "get_process_heap_mem",
	ReadFile:                  "read_file",
	WriteFile:                 "write_file",
	CreateDir:                 "create_dir",
	RemoveFile:                "remove_file",
	CloseFile:                 "close_file",
	FileIoControl:             "file_io_control",
	FileStat:                  "file_stat",
	ProcessSleep:              "process_sleep",
	SignalReturn:              "signal_return",
	SetSignal:                 "set_signal",
	GetSystemTimerTick:        "get_system_timer_tick",
	GetFontID:                 "get_font_id",
	GetNumFonts:               "get_num_fonts",
	GetFontSize:               "get_font_size",
	MemMapDirty:               "mem_map_dirty",
	TTYCreate:                 "tty_create",
	CreateUserThread:          "create_user_thread",
	SetFileToProcess:          "set_file_to_process",
	ProcessHeapUnmap:          "process_heap_unmap",
	SendSignal:                "send_signal",
	GetCurrentTime:            "get_current_time",
	OpenDir:                   "open_dir",
	ReadDir:                   "read_dir",
	CreateTimer:               "create_timer",
	StartTimer:                "start_timer",
	StopTimer:                 "stop_timer",
	DestroyTimer:              "destroy_timer",
	ProcessGetFileDesc:        "process_get_file_desc",
	FileSetOffset:             "file_set_offset",
	GetTimeOfDay:              "get_time_of_day",
	CreateSocket:              "create_socket",
	NetConnect:                "net_connect",
	NetSend:                   "net_send",
	NetReceive:                "net_receive",
	SocketSetOpt:              "socket_set_opt",
	NetBind:                   "net_bind",
	NetAccept:                 "net_accept",
	NetListen:                 "net_listen",
	CreatePipe:                "create_pipe",
	GetVDiskInfo:              "get_vdisk_info",
	GetVDiskPartitionInfo:     "get_vdisk_partition_info",
	GetEnvironmentBlock:       "get_environment_block",
}

var byName = make(map[string]int, MaxSyscall)

func init() {
	for i, name := range Names {
		byName[name] = i
	}
}

// Lookup returns the identifier of a syscall name.
func Lookup(name string) (int, bool) {
	n, ok := byName[name]
	return n, ok
}

// Name returns the catalog name of n, or "" if n is out of range.
func Name(n int64) string {
	if n < 0 || n >= MaxSyscall {
		return ""
	}
	return Names[n]
}
