package mocks

//go:generate mockery --name HistoryStore --srcpkg github.com/aevon-lab/pricewatch/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Notifier --srcpkg github.com/aevon-lab/pricewatch/internal/notify --output ./notify --outpkg notifymocks --with-expecter
