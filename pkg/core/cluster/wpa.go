package cluster

import (
	"sort"

	"go.uber.org/zap"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
)

// wpaRun 一次 WPA 聚类的状态
type wpaRun struct {
	g       *dag.WorkflowGraph
	log     *zap.Logger
	nextKey int
}

// runWPA 先纵向折叠单链，再自底向上成对聚类父节点并做资源平衡
func runWPA(g *dag.WorkflowGraph, log *zap.Logger) error {
	r := &wpaRun{g: g, log: log, nextKey: minParallelKey(g)}

	if err := r.collapseChains(); err != nil {
		return err
	}
	if err := g.UpdateHeight(); err != nil {
		return err
	}

	for level := g.Height(); level >= 2; level-- {
		if err := r.pairLevel(level); err != nil {
			return err
		}
		g.UpdateLinks()
	}
	g.UpdateLinks()
	return nil
}

// minParallelKey 返回图中已使用的最小并行分组键（至少为0），新键从它往下分配
func minParallelKey(g *dag.WorkflowGraph) int {
	m := 0
	for _, t := range g.Nodes() {
		for key := range t.ParallelIDs {
			if key < m {
				m = key
			}
		}
	}
	return m
}

func (r *wpaRun) parallelKey() int {
	r.nextKey--
	return r.nextKey
}

// collapseChains 纵向阶段：按层级递增，把单父单子的链折叠成一个复合任务
// 每折叠一条链立即 UpdateLinks，后续链基于更新后的图
func (r *wpaRun) collapseChains() error {
	height := r.g.Height()
	for level := 1; level < height; level++ {
		for _, head := range r.g.GetTasksAtLevel(level) {
			if _, live := r.g.GetNode(head.ID); !live {
				continue
			}
			chain := r.followChain(head)
			if len(chain) < 2 {
				continue
			}

			last := chain[len(chain)-1]
			c := dag.Cost{Cores: last.Cores()}
			ids := make([]int, 0, len(chain))
			for _, t := range chain {
				c.ExecTime += t.ExecTime()
				ids = append(ids, t.ID)
			}
			composite := dag.NewCompositeTask(head.ID, level, c)
			for _, t := range chain {
				appendSequence(composite, t)
			}

			if err := r.g.Contract(composite, ids); err != nil {
				return err
			}
			r.g.UpdateLinks()
			r.log.Debug("WPA 纵向折叠", zap.Int("level", level), zap.Ints("chain", ids))
		}
	}
	return nil
}

// followChain 从 head 出发沿唯一子节点前进，直到子节点不唯一或子节点有多个父节点
func (r *wpaRun) followChain(head *dag.Task) []*dag.Task {
	chain := []*dag.Task{head}
	current := head
	for len(current.Children) == 1 {
		child, ok := r.g.GetNode(current.Children[0])
		if !ok || len(child.Parents) != 1 {
			break
		}
		chain = append(chain, child)
		current = child
	}
	return chain
}

// longestParent 执行时间最长的父节点，相同时取 Parents 中靠前的
func (r *wpaRun) longestParent(t *dag.Task) *dag.Task {
	var longest *dag.Task
	for _, id := range t.Parents {
		p, ok := r.g.GetNode(id)
		if !ok {
			continue
		}
		if longest == nil || p.ExecTime() > longest.ExecTime() {
			longest = p
		}
	}
	return longest
}

// pairLevel 横向阶段的一层：按最长父节点执行时间升序处理任务，随后做资源平衡
func (r *wpaRun) pairLevel(level int) error {
	tasks := r.g.GetTasksAtLevel(level)
	longest := make(map[int]float64, len(tasks))
	for _, t := range tasks {
		if p := r.longestParent(t); p != nil {
			longest[t.ID] = p.ExecTime()
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return longest[tasks[i].ID] < longest[tasks[j].ID]
	})

	composites := make([]*dag.Task, 0)
	for _, t := range tasks {
		built, err := r.assignParents(t)
		if err != nil {
			return err
		}
		composites = append(composites, built...)
	}

	if len(composites) > 0 {
		r.log.Debug("WPA 父节点配对", zap.Int("level", level), zap.Int("composites", len(composites)))
	}
	return r.balance(tasks, composites)
}

// pairable 可以参与配对的父节点：未分配且位于 t 的上一层
// 阶段A折叠出的链式复合任务同样可以配对
func (r *wpaRun) pairable(t, p *dag.Task) bool {
	return !p.Assigned && p.Level == t.Level-1
}

// assignParents 把 t 的未分配父节点两两打包成复合任务
// 最长父节点只决定打包的运行时间上限；它已被分配时上限为0
func (r *wpaRun) assignParents(t *dag.Task) ([]*dag.Task, error) {
	longest := r.longestParent(t)
	if longest == nil {
		return nil, nil
	}
	maxRunTime := 0.0
	if !longest.Assigned {
		maxRunTime = longest.ExecTime()
		longest.Assigned = true
	}

	candidates := make([]*dag.Task, 0)
	for _, id := range t.Parents {
		p, ok := r.g.GetNode(id)
		if ok && r.pairable(t, p) {
			candidates = append(candidates, p)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ExecTime() > candidates[j].ExecTime()
	})

	built := make([]*dag.Task, 0)
	pack := make([]*dag.Task, 0, 2)
	packTime := 0.0
	// 从尾部（执行时间最短）开始消费
	for i := len(candidates) - 1; i >= 0; i-- {
		p := candidates[i]
		if packTime+p.ExecTime() <= maxRunTime && len(pack) < 2 {
			pack = append(pack, p)
			packTime += p.ExecTime()
			continue
		}
		if len(pack) < 2 {
			continue
		}
		composite, err := r.closePack(pack)
		if err != nil {
			return nil, err
		}
		built = append(built, composite)
		pack = append(pack[:0], p)
		packTime = p.ExecTime()
	}
	if len(pack) == 2 {
		composite, err := r.closePack(pack)
		if err != nil {
			return nil, err
		}
		built = append(built, composite)
	}
	return built, nil
}

// closePack 把两个成员折叠为复合任务，核数多的成员排在前面
func (r *wpaRun) closePack(pack []*dag.Task) (*dag.Task, error) {
	first, second := pack[0], pack[1]
	if second.Cores() > first.Cores() {
		first, second = second, first
	}

	composite := dag.NewCompositeTask(first.ID, first.Level, dag.Cost{
		ExecTime: first.ExecTime() + second.ExecTime(),
		Cores:    first.Cores(),
	})
	composite.Assigned = true
	appendSequence(composite, first)
	appendSequence(composite, second)
	// 第二个成员是单个原始任务时才留出可供资源平衡的剩余空间
	if len(second.SequentialIDs) == 0 {
		composite.ClusterSpace = &dag.ClusterSpace{
			Runtime: second.ExecTime(),
			Cores:   first.Cores() - second.Cores(),
		}
	}

	if err := r.g.Contract(composite, []int{first.ID, second.ID}); err != nil {
		return nil, err
	}
	return composite, nil
}

// balance 资源平衡：把同层未聚类的父节点并行塞进仍有剩余空间的复合任务
// 已折叠多个任务的父节点不参与；每个复合任务最多吸收一个并行成员
func (r *wpaRun) balance(tasks []*dag.Task, composites []*dag.Task) error {
	if len(composites) == 0 {
		return nil
	}
	for _, t := range tasks {
		parents := append([]int(nil), t.Parents...)
		for _, id := range parents {
			p, ok := r.g.GetNode(id)
			if !ok || p.IsComposite() {
				continue
			}
			for _, c := range composites {
				if len(c.ParallelIDs) > 0 || c.ClusterSpace == nil || c.Level != p.Level {
					continue
				}
				if c.ClusterSpace.Runtime < p.ExecTime() || c.ClusterSpace.Cores < p.Cores() {
					continue
				}
				if err := r.absorb(c, p); err != nil {
					return err
				}
				break
			}
		}
	}
	return nil
}

// absorb 把 p 作为并行成员并入复合任务 c，与 c 的第二个成员（顺序上的最后一项）并发执行
func (r *wpaRun) absorb(c, p *dag.Task) error {
	key := r.parallelKey()
	last := len(c.SequentialIDs) - 1
	c.ParallelIDs[key] = []int{c.SequentialIDs[last], p.ID}
	c.SequentialIDs[last] = key
	c.MergeClusterInfo(p)
	c.ClusterSpace.Cores -= p.Cores()

	if err := r.g.Contract(c, []int{p.ID}); err != nil {
		return err
	}
	r.log.Debug("WPA 资源平衡吸收", zap.Int("composite", c.ID), zap.Int("task", p.ID), zap.Int("group", key))
	return nil
}
